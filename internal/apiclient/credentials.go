package apiclient

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Credentials identify who a backend call is made for. They are passed on
// every call; the client keeps no ambient token.
type Credentials struct {
	Role     Role
	Token    string
	DeviceID string
}

func (c Credentials) Authenticated() bool {
	return c.Token != ""
}

func Anonymous(deviceID string) Credentials {
	return Credentials{DeviceID: deviceID}
}
