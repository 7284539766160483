package session

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/pkg/errors"
)

// User is the account record returned by the backend. Fields holds every
// attribute without a dedicated field so nothing the backend sends is lost.
type User struct {
	ID          string
	Username    string
	Email       string
	DisplayName string
	Bio         string
	AvatarURL   string
	Fields      map[string]any
}

var knownUserFields = []string{"id", "username", "email", "displayName", "bio", "avatarUrl"}

func (u *User) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "User.UnmarshalJSON")
	}
	if raw == nil {
		return errors.New("User.UnmarshalJSON: not an object")
	}

	*u = User{
		ID:          stringField(raw["id"]),
		Username:    stringField(raw["username"]),
		Email:       stringField(raw["email"]),
		DisplayName: stringField(raw["displayName"]),
		Bio:         stringField(raw["bio"]),
		AvatarURL:   stringField(raw["avatarUrl"]),
	}
	for _, k := range knownUserFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		u.Fields = raw
	}
	return nil
}

func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Fields)+len(knownUserFields))
	maps.Copy(out, u.Fields)
	for k, v := range map[string]string{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"displayName": u.DisplayName,
		"bio":         u.Bio,
		"avatarUrl":   u.AvatarURL,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Fields = maps.Clone(u.Fields)
	return &c
}

// stringField renders ids that the backend may send as numbers.
func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}
