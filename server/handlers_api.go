package server

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/go-underwriter/deals"
	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
)

const maxUploadBytes = 32 << 20

type stepRequest struct {
	Step int `json:"step"`
}

func (s *Server) ListDealsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.deals.List(r.Context())
		if err != nil {
			writeAPIError(w, "list deals", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) GetDealHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deal, err := s.deals.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeAPIError(w, "get deal", err)
			return
		}
		writeJSON(w, http.StatusOK, deal)
	}
}

func (s *Server) DeleteDealHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.deals.Delete(r.Context(), r.PathValue("id")); err != nil {
			writeAPIError(w, "delete deal", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AnalyzeHandler submits the current draft and records the result in it.
func (s *Server) AnalyzeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		submission, err := s.draft.Submission()
		if err != nil {
			writeAPIError(w, "analyze", err)
			return
		}
		analysis, err := s.deals.Submit(r.Context(), submission)
		if err != nil {
			writeAPIError(w, "analyze", err)
			return
		}
		if err := s.draft.RecordAnalysis(analysis); err != nil {
			writeAPIError(w, "analyze", err)
			return
		}
		writeJSON(w, http.StatusOK, analysis)
	}
}

func (s *Server) UploadT12Handler() http.HandlerFunc {
	return s.uploadHandler("upload t12", func(r *http.Request, name string, file io.Reader) (any, error) {
		data, err := s.deals.UploadT12(r.Context(), name, file)
		if err != nil {
			return nil, err
		}
		return data, s.draft.SetT12Data(data)
	})
}

func (s *Server) UploadRentRollHandler() http.HandlerFunc {
	return s.uploadHandler("upload rent roll", func(r *http.Request, name string, file io.Reader) (any, error) {
		data, err := s.deals.UploadRentRoll(r.Context(), name, file)
		if err != nil {
			return nil, err
		}
		return data, s.draft.SetRentRollData(data)
	})
}

// uploadHandler reads the multipart "file" field and hands it to send.
func (s *Server) uploadHandler(op string, send func(r *http.Request, name string, file io.Reader) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			writeAPIError(w, op, apperrors.Wrapf(apperrors.ErrInvalidRequest, "file is required: %v", err))
			return
		}
		defer file.Close()

		data, err := send(r, header.Filename, file)
		if err != nil {
			writeAPIError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func (s *Server) PropertyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		details, err := s.deals.LookupProperty(r.Context(), r.URL.Query().Get("address"))
		if err != nil {
			writeAPIError(w, "property lookup", err)
			return
		}
		if err := s.draft.SetPropertyDetails(details); err != nil {
			writeAPIError(w, "property lookup", err)
			return
		}
		writeJSON(w, http.StatusOK, details)
	}
}

func (s *Server) StatisticsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.deals.List(r.Context())
		if err != nil {
			writeAPIError(w, "statistics", err)
			return
		}
		writeJSON(w, http.StatusOK, deals.Summarize(list))
	}
}

func (s *Server) DraftHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.draft.Snapshot())
	}
}

func (s *Server) ClearDraftHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.draft.Clear(); err != nil {
			writeAPIError(w, "clear draft", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) BuyBoxHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buyBox deals.BuyBox
		if !decodeBody(w, r, "buy box", &buyBox) {
			return
		}
		if err := s.draft.SetBuyBox(buyBox); err != nil {
			writeAPIError(w, "buy box", err)
			return
		}
		writeJSON(w, http.StatusOK, s.draft.BuyBox())
	}
}

func (s *Server) AssumptionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var assumptions deals.Assumptions
		if !decodeBody(w, r, "assumptions", &assumptions) {
			return
		}
		if err := s.draft.SetAssumptions(assumptions); err != nil {
			writeAPIError(w, "assumptions", err)
			return
		}
		writeJSON(w, http.StatusOK, s.draft.Snapshot())
	}
}

func (s *Server) StepHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req stepRequest
		if !decodeBody(w, r, "step", &req) {
			return
		}
		if err := s.draft.SetCurrentStep(req.Step); err != nil {
			writeAPIError(w, "step", err)
			return
		}
		writeJSON(w, http.StatusOK, s.draft.Snapshot())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, op string, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeAPIError(w, op, apperrors.Wrapf(apperrors.ErrInvalidRequest, "malformed body: %v", err))
		return false
	}
	return true
}
