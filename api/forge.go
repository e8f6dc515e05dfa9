package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/courier/id"
)

// ForgeAPI wires the courier operations into a Forge router.
type ForgeAPI struct {
	svc Service
	log forge.Logger
}

// NewForgeAPI creates a ForgeAPI on top of a courier service.
func NewForgeAPI(svc Service, log forge.Logger) *ForgeAPI {
	return &ForgeAPI{
		svc: svc,
		log: log,
	}
}

// RegisterRoutes registers all courier routes into the given Forge router
// with full OpenAPI metadata.
func (a *ForgeAPI) RegisterRoutes(router forge.Router) {
	a.registerMessageRoutes(router)
	a.registerOpsRoutes(router)
}

// ---------------------------------------------------------------------------
// Message routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerMessageRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("messages"))

	if err := g.POST("/messages", a.submitMessage,
		forge.WithSummary("Submit message"),
		forge.WithDescription("Stores a JSON payload and queues it for forwarding. The response is sent once the message is durable."),
		forge.WithOperationID("submitMessage"),
		forge.WithRequestSchema(SubmitMessageForgeRequest{}),
		forge.WithResponseSchema(http.StatusAccepted, "Message accepted", SubmitResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register submitMessage route", forge.Error(err))
	}

	if err := g.GET("/messages/:messageId", a.getMessage,
		forge.WithSummary("Get message"),
		forge.WithDescription("Returns the stored state of a message."),
		forge.WithOperationID("getMessage"),
		forge.WithResponseSchema(http.StatusOK, "Message details", MessageView{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getMessage route", forge.Error(err))
	}
}

func (a *ForgeAPI) submitMessage(ctx forge.Context, req *SubmitMessageForgeRequest) (*SubmitResponse, error) {
	if err := checkPayload(req.Payload); err != nil {
		return nil, forge.BadRequest(err.Error())
	}

	msgID, err := a.svc.Submit(ctx.Context(), req.Payload)
	if err != nil {
		return nil, mapError(err)
	}

	err = ctx.JSON(http.StatusAccepted, SubmitResponse{
		Success: true,
		Message: acceptedMessage,
		ID:      msgID.String(),
	})
	if err != nil {
		return nil, err
	}
	return nil, nil //nolint:nilnil // response already written
}

func (a *ForgeAPI) getMessage(ctx forge.Context, req *GetMessageForgeRequest) (*MessageView, error) {
	msgID, err := id.ParseMessageID(req.MessageID)
	if err != nil {
		return nil, forge.BadRequest("invalid message ID")
	}

	m, err := a.svc.Get(ctx.Context(), msgID)
	if err != nil {
		return nil, mapError(err)
	}

	view := newMessageView(m)
	return &view, nil
}

// ---------------------------------------------------------------------------
// Operational routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerOpsRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("operations"))

	if err := g.GET("/stats", a.getStats,
		forge.WithSummary("Message statistics"),
		forge.WithDescription("Returns the number of pending, sent, and failed messages."),
		forge.WithOperationID("getStats"),
		forge.WithResponseSchema(http.StatusOK, "Message statistics", StatsForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getStats route", forge.Error(err))
	}

	if err := g.GET("/health", a.getHealth,
		forge.WithSummary("Health check"),
		forge.WithDescription("Reports whether the message store is reachable."),
		forge.WithOperationID("getHealth"),
		forge.WithResponseSchema(http.StatusOK, "Store reachable", HealthResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getHealth route", forge.Error(err))
	}
}

func (a *ForgeAPI) getStats(ctx forge.Context, _ *StatsForgeRequest) (*StatsForgeResponse, error) {
	stats, err := a.svc.Stats(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	return &StatsForgeResponse{
		Pending: stats.Pending,
		Sent:    stats.Sent,
		Failed:  stats.Failed,
	}, nil
}

func (a *ForgeAPI) getHealth(ctx forge.Context, _ *HealthForgeRequest) (*HealthResponse, error) {
	if err := a.svc.Ping(ctx.Context()); err != nil {
		return nil, forge.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return &HealthResponse{Success: true, Status: "ok"}, nil
}
