package httpapi

// Config defines HTTP surface settings.
type Config struct {
	Addr            string
	SessionCookie   string
	SessionTTLHours int
	SessionPath     string
	BaseURL         string
	BasePath        string
}
