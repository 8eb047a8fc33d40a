package api

import (
	_ "embed"
	"net/http"
)

//go:embed ui/index.html
var chatPage []byte

func (s *Server) handleUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(chatPage); err != nil {
		s.logger.Error().Err(err).Msg("write chat ui")
	}
}
