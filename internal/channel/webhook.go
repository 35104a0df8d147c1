package channel

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
)

// handleN8NCallback acknowledges a workflow callback and echoes its payload.
// When a callback secret is configured the body must carry a valid
// X-Signature-256 header.
func (s *Server) handleN8NCallback(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r.Context(), s.logger)
	flowID := r.PathValue("flowId")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Bad Request")
		return
	}
	defer r.Body.Close()

	if s.callbackSecret != "" {
		sig := r.Header.Get("X-Signature-256")
		if sig == "" {
			writeMessage(w, http.StatusUnauthorized, "Missing signature")
			return
		}
		if !verifyHMAC(body, s.callbackSecret, sig) {
			writeMessage(w, http.StatusForbidden, "Invalid signature")
			return
		}
	}

	var data any = map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
			return
		}
	}

	logger.Info("n8n callback received", "flow_id", flowID, "bytes", len(body))
	writeJSON(w, http.StatusOK, map[string]any{
		"received": true,
		"flowId":   flowID,
		"data":     data,
	})
}

// verifyHMAC verifies the HMAC-SHA256 signature of the body.
func verifyHMAC(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
