package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/dharsanguruparan/HerbTrace/internal/ledger"
	"github.com/dharsanguruparan/HerbTrace/internal/model"
	"github.com/dharsanguruparan/HerbTrace/internal/qrlabel"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	respondData(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   Version,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleNetworkStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	respondData(w, http.StatusOK, s.ledger.GetNetworkStatus())
}

func (s *Server) handleRecord(t model.EventType) httprouter.Handle {
	failure := fmt.Sprintf("Failed to create %s event", t)
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		payload, err := readPayload(w, r)
		if err != nil {
			s.log.Infow("rejected payload", "eventType", t, "error", err)
			respondError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}
		receipt, err := s.ledger.RecordEvent(r.Context(), t, payload)
		if err != nil {
			s.log.Errorw("record event", "eventType", t, "error", err)
			respondError(w, http.StatusInternalServerError, failure)
			return
		}
		respondData(w, http.StatusOK, receipt)
	}
}

func (s *Server) handleProvenance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.writeProvenance(w, r, ps.ByName("productId"))
}

func (s *Server) writeProvenance(w http.ResponseWriter, r *http.Request, productID string) {
	record, err := s.ledger.GetProvenance(r.Context(), productID)
	if errors.Is(err, ledger.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Product not found in blockchain")
		return
	}
	if err != nil {
		s.log.Errorw("get provenance", "productId", productID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch provenance")
		return
	}
	respondData(w, http.StatusOK, record)
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	productID := ps.ByName("productId")
	if _, err := s.ledger.GetProvenance(r.Context(), productID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Product not found in blockchain")
			return
		}
		s.log.Errorw("label lookup", "productId", productID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch provenance")
		return
	}
	png, err := qrlabel.Render(s.signer.VerifyURL(productID), qrlabel.DefaultSize)
	if err != nil {
		s.log.Errorw("render label", "productId", productID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to render label")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", "inline; filename=\""+productID+".png\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	productID, expires, signature := q.Get("product"), q.Get("expires"), q.Get("signature")
	if productID == "" || expires == "" || signature == "" {
		respondError(w, http.StatusBadRequest, "Missing verification parameters")
		return
	}
	if !s.signer.Validate(productID, expires, signature) {
		respondError(w, http.StatusUnauthorized, "Invalid or expired verification link")
		return
	}
	s.writeProvenance(w, r, productID)
}

func (s *Server) handleUserProducts(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	products, err := s.ledger.ListUserProducts(r.Context(), ps.ByName("userId"))
	if err != nil {
		s.log.Errorw("list user products", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch user products")
		return
	}
	respondData(w, http.StatusOK, products)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	analytics, err := s.ledger.GetAnalytics(r.Context())
	if err != nil {
		s.log.Errorw("analytics", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch analytics")
		return
	}
	respondData(w, http.StatusOK, analytics)
}

// readPayload decodes the request body as a JSON object. An empty body is an
// empty payload; any other non-object JSON, including null, is rejected.
func readPayload(w http.ResponseWriter, r *http.Request) (model.Payload, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return model.Payload{}, nil
	}
	var payload model.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if payload == nil {
		return nil, errors.New("decode body: payload must be a JSON object")
	}
	return payload, nil
}
