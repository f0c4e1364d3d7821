package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/chat"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/service"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

const defaultMaxWait = 25 * time.Second

// ChatHandler exposes live ticket views over HTTP. Clients open a session,
// long-poll its updates and drive it with commands.
type ChatHandler struct {
	service *service.ChatService
	maxWait time.Duration
}

// NewChatHandler constructs handler. maxWait caps long-poll requests and
// should stay below the request timeout; zero uses 25s.
func NewChatHandler(chatService *service.ChatService, maxWait time.Duration) *ChatHandler {
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &ChatHandler{service: chatService, maxWait: maxWait}
}

func viewerFrom(c *fiber.Ctx) (service.Viewer, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return service.Viewer{}, apperrors.NewUnauthorized("authentication required")
	}
	return service.Viewer{Role: principal.Role, ID: principal.SubjectID}, nil
}

func (h *ChatHandler) session(c *fiber.Ctx) (*service.ChatSession, error) {
	viewer, err := viewerFrom(c)
	if err != nil {
		return nil, err
	}
	cs, err := h.service.Get(c.Params("id"), viewer)
	if err != nil {
		return nil, mapError(err)
	}
	return cs, nil
}

// Open POST /admin/sessions.
func (h *ChatHandler) Open(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	var req dto.OpenSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TicketNumber == "" {
		return apperrors.NewValidationError("ticket_number required", nil)
	}

	cs, err := h.service.Open(c.UserContext(), req.TicketNumber, viewer, service.ViewState{
		Visible: req.Visible,
		Focused: req.Focused,
	})
	if err != nil {
		return mapError(err)
	}
	view, err := cs.View()
	if err != nil {
		return mapError(err)
	}
	resp := dto.NewViewResponse(view)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.SessionResponse{
		SessionID:    cs.ID(),
		TicketNumber: cs.TicketNumber(),
		Version:      cs.Outbox.Version(),
		View:         &resp,
	}})
}

// View GET /admin/sessions/:id.
func (h *ChatHandler) View(c *fiber.Ctx) error {
	cs, err := h.session(c)
	if err != nil {
		return err
	}
	view, err := cs.View()
	if err != nil {
		return mapError(err)
	}
	resp := dto.NewViewResponse(view)
	return c.JSON(fiber.Map{"data": dto.SessionResponse{
		SessionID:    cs.ID(),
		TicketNumber: cs.TicketNumber(),
		Version:      cs.Outbox.Version(),
		View:         &resp,
	}})
}

// Updates GET /admin/sessions/:id/updates?after=&wait=.
// wait is in seconds; the request returns as soon as the outbox moves past
// after.
func (h *ChatHandler) Updates(c *fiber.Ctx) error {
	cs, err := h.session(c)
	if err != nil {
		return err
	}
	after, err := strconv.ParseUint(c.Query("after", "0"), 10, 64)
	if err != nil {
		return apperrors.NewValidationError("after must be a version number", nil)
	}
	wait := time.Duration(parseInt(c.Query("wait"), 0)) * time.Second
	if wait > h.maxWait {
		wait = h.maxWait
	}

	snap := cs.Updates(c.UserContext(), after, wait)
	resp := dto.UpdatesResponse{
		Version:        snap.Version,
		ScrollToBottom: snap.ScrollToBottom,
		Notices:        dto.NewNoticeResponses(snap.Notices),
	}
	if snap.View != nil && snap.Version > after {
		view := dto.NewViewResponse(*snap.View)
		resp.View = &view
	}
	return c.JSON(fiber.Map{"data": resp})
}

// SendMessage POST /admin/sessions/:id/messages.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	cs, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := cs.Send(c.UserContext(), req.Body)
	if err != nil {
		return mapError(err)
	}
	resp := dto.NewMessageResponse(msg)
	resp.Own = true
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.MessageSentResponse{Message: resp}})
}

// UpdateStatus PATCH /admin/sessions/:id/status.
func (h *ChatHandler) UpdateStatus(c *fiber.Ctx) error {
	cs, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return mapError(err)
	}
	if err := cs.UpdateStatus(c.UserContext(), status); err != nil {
		return mapError(err)
	}
	return h.ticketState(c, cs)
}

// UpdatePriority PATCH /admin/sessions/:id/priority.
func (h *ChatHandler) UpdatePriority(c *fiber.Ctx) error {
	cs, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.UpdatePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return mapError(err)
	}
	if err := cs.UpdatePriority(c.UserContext(), priority); err != nil {
		return mapError(err)
	}
	return h.ticketState(c, cs)
}

// Reopen POST /admin/sessions/:id/reopen.
func (h *ChatHandler) Reopen(c *fiber.Ctx) error {
	cs, err := h.session(c)
	if err != nil {
		return err
	}
	if err := cs.Reopen(c.UserContext()); err != nil {
		return mapError(err)
	}
	return h.ticketState(c, cs)
}

func (h *ChatHandler) ticketState(c *fiber.Ctx, cs *service.ChatSession) error {
	view, err := cs.View()
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.TicketStateResponse{
		Status:   view.Ticket.Status,
		Priority: view.Ticket.Priority,
	}})
}

// Typing POST /admin/sessions/:id/typing.
func (h *ChatHandler) Typing(c *fiber.Ctx) error {
	cs, err := h.session(c)
	if err != nil {
		return err
	}
	sent, err := cs.Typing()
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.TypingResponse{Broadcast: sent}})
}

// Viewport PUT /admin/sessions/:id/viewport.
func (h *ChatHandler) Viewport(c *fiber.Ctx) error {
	cs, err := h.session(c)
	if err != nil {
		return err
	}
	var req chat.Viewport
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := cs.UpdateViewport(req); err != nil {
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Presence PUT /admin/sessions/:id/presence.
func (h *ChatHandler) Presence(c *fiber.Ctx) error {
	cs, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.PresenceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Visible != nil {
		if err := cs.SetVisible(*req.Visible); err != nil {
			return mapError(err)
		}
	}
	if req.Focused != nil {
		if err := cs.SetFocused(*req.Focused); err != nil {
			return mapError(err)
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Scroll POST /admin/sessions/:id/scroll.
func (h *ChatHandler) Scroll(c *fiber.Ctx) error {
	cs, err := h.session(c)
	if err != nil {
		return err
	}
	if err := cs.RequestScroll(); err != nil {
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Close DELETE /admin/sessions/:id.
func (h *ChatHandler) Close(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.Close(c.Params("id"), viewer); err != nil {
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
