package objects

// Key identifies a host (Service empty) or a service (host name + description).
// Every cross reference between objects, downtimes and dependencies is a Key
// looked up in the Store, never a pointer.
type Key struct {
	Host    string `json:"host" yaml:"host"`
	Service string `json:"service,omitempty" yaml:"service"`
}

// HostKey returns the Key of the named host.
func HostKey(host string) Key {
	return Key{Host: host}
}

// ServiceKey returns the Key of the service description on host.
func ServiceKey(host, service string) Key {
	return Key{Host: host, Service: service}
}

// IsService reports whether k refers to a service.
func (k Key) IsService() bool {
	return k.Service != ""
}

// HostKey returns the Key of the host k belongs to.
func (k Key) HostKey() Key {
	return Key{Host: k.Host}
}

// String implements the fmt.Stringer interface using the "host!service" notation.
func (k Key) String() string {
	if k.Service == "" {
		return k.Host
	}

	return k.Host + "!" + k.Service
}

// Kind returns "host" or "service".
func (k Key) Kind() string {
	if k.IsService() {
		return "service"
	}

	return "host"
}
