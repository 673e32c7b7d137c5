package get

import (
	"net/http"

	"github.com/a-h/respond"
	"github.com/a-h/vectorserver"
	"github.com/a-h/vectorserver/models"
)

type Handler struct{}

func (Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	respond.WithJSON(w, models.HealthGetResponse{
		Status:  "ok",
		Version: vectorserver.Version,
	}, http.StatusOK)
}
