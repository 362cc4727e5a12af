package api

import (
	"net/http"

	"github.com/odvcencio/songlist/internal/service"
)

type addRepertoireRequest struct {
	SongID   int64   `json:"song_id"`
	Notes    *string `json:"notes"`
	Duration *int    `json:"duration"`
}

type tagRequest struct {
	TagID int64 `json:"tag_id"`
}

func (s *Server) handleListRepertoire(w http.ResponseWriter, r *http.Request) {
	bandID, ok := parsePathID(w, r, "id", "band id")
	if !ok {
		return
	}
	songs, err := s.repertoireSvc.List(r.Context(), bandID, currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, songs)
}

func (s *Server) handleAddRepertoire(w http.ResponseWriter, r *http.Request) {
	bandID, ok := parsePathID(w, r, "id", "band id")
	if !ok {
		return
	}
	var req addRepertoireRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SongID <= 0 {
		jsonError(w, "song_id is required", http.StatusBadRequest)
		return
	}
	entry, err := s.repertoireSvc.Add(r.Context(), bandID, currentUserID(r), req.SongID,
		service.Override{Notes: req.Notes, Duration: req.Duration})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, entry)
}

func (s *Server) handleUpdateRepertoire(w http.ResponseWriter, r *http.Request) {
	bandID, ok := parsePathID(w, r, "id", "band id")
	if !ok {
		return
	}
	songID, ok := parsePathID(w, r, "songId", "song id")
	if !ok {
		return
	}
	var req service.Override
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := s.repertoireSvc.Update(r.Context(), bandID, currentUserID(r), songID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, entry)
}

func (s *Server) handleRemoveRepertoire(w http.ResponseWriter, r *http.Request) {
	bandID, ok := parsePathID(w, r, "id", "band id")
	if !ok {
		return
	}
	songID, ok := parsePathID(w, r, "songId", "song id")
	if !ok {
		return
	}
	if err := s.repertoireSvc.Remove(r.Context(), bandID, currentUserID(r), songID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddRepertoireTag(w http.ResponseWriter, r *http.Request) {
	bandID, ok := parsePathID(w, r, "id", "band id")
	if !ok {
		return
	}
	songID, ok := parsePathID(w, r, "songId", "song id")
	if !ok {
		return
	}
	var req tagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TagID <= 0 {
		jsonError(w, "tag_id is required", http.StatusBadRequest)
		return
	}
	tags, err := s.repertoireSvc.AddTag(r.Context(), bandID, currentUserID(r), songID, req.TagID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, tags)
}

func (s *Server) handleRemoveRepertoireTag(w http.ResponseWriter, r *http.Request) {
	bandID, ok := parsePathID(w, r, "id", "band id")
	if !ok {
		return
	}
	songID, ok := parsePathID(w, r, "songId", "song id")
	if !ok {
		return
	}
	tagID, ok := parsePathID(w, r, "tagId", "tag id")
	if !ok {
		return
	}
	tags, err := s.repertoireSvc.RemoveTag(r.Context(), bandID, currentUserID(r), songID, tagID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, tags)
}
