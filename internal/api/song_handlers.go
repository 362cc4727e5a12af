package api

import (
	"net/http"

	"github.com/odvcencio/songlist/internal/service"
)

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.catalogSvc.ListSongs(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, songs)
}

func (s *Server) handleCreateSong(w http.ResponseWriter, r *http.Request) {
	var req service.SongInput
	if !decodeJSON(w, r, &req) {
		return
	}
	song, err := s.catalogSvc.CreateSong(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, song)
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	songID, ok := parsePathID(w, r, "id", "song id")
	if !ok {
		return
	}
	song, err := s.catalogSvc.GetSong(r.Context(), songID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, song)
}

func (s *Server) handleUpdateSong(w http.ResponseWriter, r *http.Request) {
	songID, ok := parsePathID(w, r, "id", "song id")
	if !ok {
		return
	}
	var req service.SongInput
	if !decodeJSON(w, r, &req) {
		return
	}
	song, err := s.catalogSvc.UpdateSong(r.Context(), songID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, song)
}

func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	songID, ok := parsePathID(w, r, "id", "song id")
	if !ok {
		return
	}
	if err := s.catalogSvc.DeleteSong(r.Context(), songID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSongTag(w http.ResponseWriter, r *http.Request) {
	songID, ok := parsePathID(w, r, "id", "song id")
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
	tags, err := s.catalogSvc.AddSongTag(r.Context(), songID, req.TagID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, tags)
}

func (s *Server) handleRemoveSongTag(w http.ResponseWriter, r *http.Request) {
	songID, ok := parsePathID(w, r, "id", "song id")
	if !ok {
		return
	}
	tagID, ok := parsePathID(w, r, "tagId", "tag id")
	if !ok {
		return
	}
	tags, err := s.catalogSvc.RemoveSongTag(r.Context(), songID, tagID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, tags)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.catalogSvc.ListTags(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, tags)
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tag, err := s.catalogSvc.CreateTag(r.Context(), req.Name, req.Color)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, tag)
}
