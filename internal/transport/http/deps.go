package http

import (
	"go.uber.org/zap"

	"github.com/go-classroom-api/internal/infrastructure/blob"
	"github.com/go-classroom-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-classroom-api/internal/infrastructure/jwt"
	"github.com/go-classroom-api/internal/infrastructure/sns"
	"github.com/go-classroom-api/internal/realtime"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	SessionRepo      *dynamo.SessionRepo
	GroupRepo        *dynamo.GroupRepo
	MessageRepo      *dynamo.MessageRepo
	NotificationRepo *dynamo.NotificationRepo

	Attachments blob.Store
	Registry    *realtime.Registry
	Alerts      sns.AlertPublisher // nil when no topic is configured
	JWTProvider *jwtinfra.Provider
	Logger      *zap.Logger
}
