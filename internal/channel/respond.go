package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"bizassist/internal/domain"
	"bizassist/internal/metrics"
)

const streamErrorText = "Error during stream generation."

type errorBody struct {
	Message      string `json:"message"`
	ErrorDetails string `json:"errorDetails,omitempty"`
}

type replyBody struct {
	Content   string `json:"content"`
	ChartData any    `json:"chartData,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Message: message})
}

// writeEnvelope renders env onto w. It returns the answer text and whether
// the caller received all of it.
func writeEnvelope(w http.ResponseWriter, r *http.Request, env domain.Envelope, logger *slog.Logger) (string, bool) {
	switch e := env.(type) {
	case domain.Reply:
		writeJSON(w, http.StatusOK, replyBody{Content: e.Text, ChartData: e.ChartData})
		return e.Text, true
	case domain.Failure:
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Message: "Chat service error", ErrorDetails: e.Message})
		return "", false
	case domain.Stream:
		return writeStream(w, r.Context(), e.Tokens, logger)
	default:
		logger.Error("assistant returned no envelope", "type", fmt.Sprintf("%T", env))
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Internal Server Error", ErrorDetails: "Empty response from assistant."})
		return "", false
	}
}

// writeStream relays fragments as server-sent events in the order produced.
// Nothing is written once ctx is done. The stream is always closed, and is
// closed early when the caller goes away so the upstream call is released.
func writeStream(w http.ResponseWriter, ctx context.Context, tokens domain.TokenStream, logger *slog.Logger) (string, bool) {
	defer tokens.Close()
	stop := context.AfterFunc(ctx, func() { tokens.Close() })
	defer stop()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeMessage(w, http.StatusInternalServerError, "Streaming not supported")
		return "", false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.SSEConnections.Inc()
	defer metrics.SSEConnections.Dec()

	var answer strings.Builder
	for {
		fragment, err := tokens.Recv()
		if errors.Is(err, io.EOF) {
			return answer.String(), true
		}
		if ctx.Err() != nil {
			logger.Info("client disconnected during stream", "bytes_sent", answer.Len())
			return "", false
		}
		if err != nil {
			logger.Error("stream generation failed", "err", err)
			writeEvent(w, flusher, map[string]string{"error": streamErrorText})
			return "", false
		}
		if err := writeEvent(w, flusher, replyBody{Content: fragment}); err != nil {
			logger.Info("stream write failed", "err", err)
			return "", false
		}
		metrics.StreamFragments.Inc()
		answer.WriteString(fragment)
	}
}

func writeEvent(w io.Writer, flusher http.Flusher, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
