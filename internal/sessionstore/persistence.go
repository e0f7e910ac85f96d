package sessionstore

// Persistence records how a successful login was remembered.
type Persistence int

const (
	// PersistNone means no login is remembered.
	PersistNone Persistence = iota
	// PersistTransient lasts for the current user session (runtime directory).
	PersistTransient
	// PersistDurable survives restarts (state directory).
	PersistDurable
)

func (p Persistence) String() string {
	switch p {
	case PersistTransient:
		return "transient"
	case PersistDurable:
		return "durable"
	default:
		return "none"
	}
}

// Flags are the values kept by one backend.
type Flags struct {
	Auth       bool `json:"auth"`
	RememberMe bool `json:"remember_me"`
}
