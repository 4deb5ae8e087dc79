package auth

import (
	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/audit"
	jwtservice "github.com/Zaramlt59/TMS-sub001/services/jwt"
	"github.com/Zaramlt59/TMS-sub001/services/lockout"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"github.com/Zaramlt59/TMS-sub001/services/mail"
	"github.com/Zaramlt59/TMS-sub001/services/refreshtoken"
	"github.com/Zaramlt59/TMS-sub001/services/users"
	"go.uber.org/fx"
)

func ProvideAuthService(
	cfg *config.Config,
	userService *users.Service,
	tokens *refreshtoken.Service,
	jwtService *jwtservice.Service,
	tracker *lockout.Tracker,
	auditService *audit.Service,
	mailService *mail.Service,
	logger *logging.Service,
) *Service {
	return NewService(cfg, userService, tokens, jwtService, tracker, auditService, mailService, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideAuthService),
)
