package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/service"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

// AdminTicketsHandler serves the admin inbox.
type AdminTicketsHandler struct {
	service *service.TicketService
}

// NewAdminTicketsHandler constructs handler.
func NewAdminTicketsHandler(ticketService *service.TicketService) *AdminTicketsHandler {
	return &AdminTicketsHandler{service: ticketService}
}

// ListTickets GET /admin/tickets.
func (h *AdminTicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return mapError(err)
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /admin/tickets/:number.
func (h *AdminTicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, messages, err := h.service.GetTicket(c.UserContext(), c.Params("number"))
	if err != nil {
		return mapError(err)
	}
	detail := dto.TicketDetailResponse{
		TicketSummary: dto.NewTicketSummary(ticket),
		Messages:      make([]dto.MessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		detail.Messages = append(detail.Messages, dto.NewMessageResponse(m))
	}
	return c.JSON(fiber.Map{"data": detail})
}

// History GET /admin/tickets/:number/history.
func (h *AdminTicketsHandler) History(c *fiber.Ctx) error {
	entries, err := h.service.History(c.UserContext(), c.Params("number"))
	if err != nil {
		return mapError(err)
	}
	items := make([]dto.HistoryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.NewHistoryResponse(e))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTicketFilter(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{}
	if statuses := c.Query("status"); statuses != "" {
		for _, part := range strings.Split(statuses, ",") {
			status, err := domain.ParseStatus(part)
			if err != nil {
				return filter, apperrors.NewValidationError("invalid status filter", map[string]any{"status": part})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if priorities := c.Query("priority"); priorities != "" {
		for _, part := range strings.Split(priorities, ",") {
			priority, err := domain.ParsePriority(part)
			if err != nil {
				return filter, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": part})
			}
			filter.Priorities = append(filter.Priorities, priority)
		}
	}
	if category := c.Query("category"); category != "" {
		filter.Category = &category
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	if updatedFrom := parseTime(c.Query("updated_from")); updatedFrom != nil {
		filter.UpdatedFrom = updatedFrom
	}
	if updatedTo := parseTime(c.Query("updated_to")); updatedTo != nil {
		filter.UpdatedTo = updatedTo
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
