package api

import (
	"net/http"
)

type bandRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListBands(w http.ResponseWriter, r *http.Request) {
	bands, err := s.bandSvc.List(r.Context(), currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, bands)
}

func (s *Server) handleCreateBand(w http.ResponseWriter, r *http.Request) {
	var req bandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	band, err := s.bandSvc.Create(r.Context(), req.Name, currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, band)
}

func (s *Server) handleGetBand(w http.ResponseWriter, r *http.Request) {
	bandID, ok := parsePathID(w, r, "id", "band id")
	if !ok {
		return
	}
	band, err := s.bandSvc.Get(r.Context(), bandID, currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, band)
}

func (s *Server) handleRenameBand(w http.ResponseWriter, r *http.Request) {
	bandID, ok := parsePathID(w, r, "id", "band id")
	if !ok {
		return
	}
	var req bandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	band, err := s.bandSvc.Rename(r.Context(), bandID, req.Name, currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, band)
}

func (s *Server) handleDeleteBand(w http.ResponseWriter, r *http.Request) {
	bandID, ok := parsePathID(w, r, "id", "band id")
	if !ok {
		return
	}
	if err := s.bandSvc.Delete(r.Context(), bandID, currentUserID(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	bandID, ok := parsePathID(w, r, "id", "band id")
	if !ok {
		return
	}
	members, err := s.bandSvc.Members(r.Context(), bandID, currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, members)
}

func (s *Server) handleLeaveBand(w http.ResponseWriter, r *http.Request) {
	bandID, ok := parsePathID(w, r, "id", "band id")
	if !ok {
		return
	}
	if err := s.bandSvc.Leave(r.Context(), bandID, currentUserID(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	bandID, ok := parsePathID(w, r, "id", "band id")
	if !ok {
		return
	}
	inv, err := s.inviteSvc.Create(r.Context(), bandID, currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, inv)
}

func (s *Server) handleGetInvite(w http.ResponseWriter, r *http.Request) {
	info, err := s.inviteSvc.Resolve(r.Context(), r.PathValue("token"), currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, info)
}

func (s *Server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	info, err := s.inviteSvc.Accept(r.Context(), r.PathValue("token"), currentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.metrics.observeInviteRedemption(info.AlreadyMember)
	jsonResponse(w, http.StatusOK, info)
}
