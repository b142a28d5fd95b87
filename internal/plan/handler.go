package plan

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes plan HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a plan HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type planResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Terms        string `json:"terms,omitempty"`
	Rate         string `json:"rate"`
	DurationDays int    `json:"duration_days"`
}

// List returns the active plans.
func (h *Handler) List(c *fiber.Ctx) error {
	plans, err := h.service.Active(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Terms:        p.Terms,
			Rate:         p.Rate.String(),
			DurationDays: p.DurationDays,
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}
