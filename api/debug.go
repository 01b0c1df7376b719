package api

import (
	"log/slog"
	"net/http"

	"gallery-gateway/middleware/ratelimit/domain"
	"gallery-gateway/middleware/ratelimit/infra"
)

// AdmissionStats mostra os contadores de admissão (gate + rate limit)
// e a cota corrente de quem pergunta, sem consumir nada.
func (a *API) AdmissionStats(w http.ResponseWriter, r *http.Request) {
	if !a.development || a.admission == nil {
		writeError(w, http.StatusForbidden, "Not available in production")
		return
	}

	client := a.limiter.Identify(r)
	resp := AdmissionResponse{
		Stats:  a.admission.Snapshot(),
		Client: string(client),
		Quota:  make(map[string]QuotaView, 2),
	}
	if a.uploadPool != nil {
		resp.UploadSlotsUsed = infra.InUse(a.uploadPool)
	}
	for _, class := range []domain.Class{domain.ClassAuth, domain.ClassAPI} {
		dec, err := a.limiter.Service.Peek(r.Context(), client, class)
		if err != nil {
			a.logger.Error("read rate limit counter", slog.String("class", string(class)), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "Failed to read rate limit counters")
			return
		}
		resp.Quota[string(class)] = QuotaView{
			Limit:     dec.Limit,
			Remaining: dec.Remaining,
			ResetTime: dec.ResetAt.UnixMilli(),
		}
	}

	setNoCache(w.Header())
	writeJSON(w, http.StatusOK, resp)
}

// ForgetClient zera só as cotas de quem pergunta.
func (a *API) ForgetClient(w http.ResponseWriter, r *http.Request) {
	if !a.development {
		writeError(w, http.StatusForbidden, "Not available in production")
		return
	}

	client := a.limiter.Identify(r)
	if err := a.limiter.Service.Forget(r.Context(), client); err != nil {
		a.logger.Error("forget rate limit counters", slog.String("client", string(client)), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to reset rate limit counters")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Rate limit counters cleared for " + string(client)})
}
