package sessions

// Field is a key in the persisted session store.
// The values match the storage keys the web client has always used.
type Field string

const (
	FieldAccessToken  Field = "access_token"
	FieldUsername     Field = "username"
	FieldEmail        Field = "email"
	FieldRefreshToken Field = "refresh_token" // Federated-login fallback only; normally an HttpOnly cookie
)

// Fields lists every key a store may hold
var Fields = []Field{FieldAccessToken, FieldUsername, FieldEmail, FieldRefreshToken}

// Session is the cached identity of the logged in user together with its access token.
// AccessToken, Username and Email are always set and cleared together.
type Session struct {
	AccessToken string `json:"access_token" yaml:"-"`
	Username    string `json:"username" yaml:"username"`
	Email       string `json:"email" yaml:"email"`
}

// Values returns the store representation of the session
func (s Session) Values() map[Field]string {
	return map[Field]string{
		FieldAccessToken: s.AccessToken,
		FieldUsername:    s.Username,
		FieldEmail:       s.Email,
	}
}

// Complete reports whether every field required for a logged in session is present
func (s Session) Complete() bool {
	return s.AccessToken != "" && s.Username != "" && s.Email != ""
}

// Reader is the read-only view of a store handed to components that must not write
type Reader interface {
	// Get returns the stored value or false when it is absent. It never fails.
	Get(field Field) (string, bool)
}

// Store is the durable key/value storage behind the session.
// Only the auth manager writes to it; everything else receives a Reader.
type Store interface {
	Reader

	// Set overwrites a single field. No validation is performed.
	Set(field Field, value string) error

	// Replace atomically clears every field and writes values.
	// Empty values are not stored.
	Replace(values map[Field]string) error

	// ClearAll removes every field. No reader observes a partially cleared store.
	ClearAll() error
}

// Load reads a complete session from the store
func Load(r Reader) (*Session, bool) {
	accessToken, _ := r.Get(FieldAccessToken)
	username, _ := r.Get(FieldUsername)
	email, _ := r.Get(FieldEmail)

	s := Session{AccessToken: accessToken, Username: username, Email: email}
	if !s.Complete() {
		return nil, false
	}
	return &s, true
}

// Partial reports whether the store holds some but not all session fields
func Partial(r Reader) bool {
	present := 0
	for _, f := range []Field{FieldAccessToken, FieldUsername, FieldEmail} {
		if _, ok := r.Get(f); ok {
			present++
		}
	}
	return present > 0 && present < 3
}
