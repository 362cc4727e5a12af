package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/odvcencio/songlist/internal/service"
)

type replaceSongsRequest struct {
	SongIDs []int64 `json:"song_ids"`
}

func (s *Server) handleListSonglists(w http.ResponseWriter, r *http.Request) {
	var bandID *int64
	if raw := strings.TrimSpace(r.URL.Query().Get("band_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			jsonError(w, "invalid band_id", http.StatusBadRequest)
			return
		}
		bandID = &id
	}
	lists, err := s.songlistSvc.List(r.Context(), currentUserID(r), bandID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, lists)
}

func (s *Server) handleCreateSonglist(w http.ResponseWriter, r *http.Request) {
	var req service.SonglistInput
	if !decodeJSON(w, r, &req) {
		return
	}
	sl, err := s.songlistSvc.Create(r.Context(), req, currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, sl)
}

func (s *Server) handleGetSonglist(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id", "songlist id")
	if !ok {
		return
	}
	sl, err := s.songlistSvc.Get(r.Context(), id, currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, sl)
}

func (s *Server) handleUpdateSonglist(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id", "songlist id")
	if !ok {
		return
	}
	var req service.SonglistInput
	if !decodeJSON(w, r, &req) {
		return
	}
	sl, err := s.songlistSvc.Update(r.Context(), id, req, currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, sl)
}

func (s *Server) handleDeleteSonglist(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id", "songlist id")
	if !ok {
		return
	}
	if err := s.songlistSvc.Delete(r.Context(), id, currentUserID(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReplaceSonglistSongs(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id", "songlist id")
	if !ok {
		return
	}
	var req replaceSongsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sl, err := s.songlistSvc.ReplaceSongs(r.Context(), id, req.SongIDs, currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.metrics.observeSonglistReplace()
	jsonResponse(w, http.StatusOK, sl)
}

func (s *Server) handleShareSonglist(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id", "songlist id")
	if !ok {
		return
	}
	token, err := s.songlistSvc.Share(r.Context(), id, currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"share_token": token})
}

func (s *Server) handleUnshareSonglist(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id", "songlist id")
	if !ok {
		return
	}
	if err := s.songlistSvc.Unshare(r.Context(), id, currentUserID(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublicSonglist(w http.ResponseWriter, r *http.Request) {
	view, err := s.songlistSvc.Public(r.Context(), r.PathValue("token"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			s.metrics.observeShareRead(false)
		}
		writeServiceError(w, r, err)
		return
	}
	s.metrics.observeShareRead(true)
	jsonResponse(w, http.StatusOK, view)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	if s.backupSvc == nil {
		jsonError(w, "backups are not configured", http.StatusNotImplemented)
		return
	}
	res, err := s.backupSvc.Run(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}
