package auth

import (
	"net/http"
	"time"

	"github.com/rs/xid"
)

// ViewerCookie labels anonymous viewers across page loads.
const ViewerCookie = "xfive_viewer"

// ViewerID returns the viewer id from r, issuing a new one in a cookie when missing or malformed.
func ViewerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(ViewerCookie); err == nil {
		if id, err := xid.FromString(c.Value); err == nil {
			return id.String()
		}
	}
	id := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     ViewerCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
	return id
}
