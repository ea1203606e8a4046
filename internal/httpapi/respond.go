package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viajai/server/internal/core/errx"
	"github.com/viajai/server/internal/session"
	logx "github.com/viajai/server/pkg/logger"
)

// User-facing messages. The product speaks Portuguese; backend-reported
// errors pass through verbatim, these cover the locally-raised outcomes.
const (
	msgLoginRequired        = "Você atingiu o limite de 3 usos gratuitos. Por favor, crie uma conta para continuar."
	msgSubscriptionRequired = "Você precisa de uma assinatura ativa para continuar usando o assistente."
	msgEmptyMessage         = "Mensagem não fornecida"
	msgBusy                 = "Aguarde a resposta anterior antes de enviar outra mensagem."
	msgIncompleteData       = "Dados incompletos"
	msgInvalidCredentials   = "Email ou senha inválidos"
	msgEmailTaken           = "Email já cadastrado"
	msgTryAgain             = "Desculpe, ocorreu um erro ao processar sua solicitação. Por favor, tente novamente."
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

// failure is the error envelope: a machine-readable error code plus the
// user-facing message.
func failure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// respondError maps flow outcomes and infrastructure failures onto the wire.
// Gate denials are designed outcomes, not errors: the client turns them into
// the registration or subscription hand-off.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyInput):
		failure(w, http.StatusBadRequest, "empty_message", msgEmptyMessage)
	case errors.Is(err, session.ErrBusy):
		failure(w, http.StatusConflict, "busy", msgBusy)
	case errors.Is(err, session.ErrRegistrationRequired):
		failure(w, http.StatusForbidden, "login_required", msgLoginRequired)
	case errors.Is(err, session.ErrSubscriptionRequired):
		failure(w, http.StatusForbidden, "subscription_required", msgSubscriptionRequired)
	case errors.Is(err, context.DeadlineExceeded):
		failure(w, http.StatusGatewayTimeout, "timeout", msgTryAgain)
	default:
		var appErr *errx.AppError
		if errors.As(err, &appErr) {
			logx.Error().Err(err).Int("status", appErr.Status).Msg("request failed")
			failure(w, appErr.Status, "internal_error", msgTryAgain)
			return
		}
		logx.Error().Err(err).Msg("request failed")
		failure(w, http.StatusInternalServerError, "internal_error", msgTryAgain)
	}
}
