// Package health реализует проверку живости API.
package health

import (
	"net/http"

	"github.com/go-chi/render"
)

// Handler отвечает 200 OK, пока процесс обслуживает запросы.
func Handler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}
