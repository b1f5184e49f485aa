package core

// ServiceDeps captures dependencies for the core service.
type ServiceDeps struct {
	Remotes RemoteProvider
}
