// 包 api：集中注册 HTTP API 路由以解耦主入口；挂载于 API_BASE 前缀之下
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"travel-geo/internal/catalog"
	"travel-geo/internal/detector"
	"travel-geo/internal/logger"
	"travel-geo/internal/revgeo"
	"travel-geo/internal/session"
)

// Detector：检测与目录查询能力
type Detector interface {
	session.Detector
	ByCode(code string) (detector.CountryInfo, bool)
	All() []detector.CountryInfo
}

type startRequest struct {
	LastCountry string `json:"lastCountry"`
}

type primeRequest struct {
	CountryCode string `json:"countryCode"`
}

const maxBody = 1 << 16

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 /api 前缀
func BuildRoutes(det Detector, mgr *session.Manager) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := decodeOptional(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.LastCountry = normCode(req.LastCountry)
		if req.LastCountry != "" && !catalog.ValidCode(req.LastCountry) {
			writeError(w, http.StatusBadRequest, "invalid lastCountry")
			return
		}
		s := mgr.Create()
		if req.LastCountry != "" {
			_ = s.Prime(req.LastCountry)
		}
		writeJSON(w, http.StatusCreated, s.Snapshot())
	})

	mux.HandleFunc("GET /sessions/{id}", withSession(mgr, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		writeJSON(w, http.StatusOK, s.Snapshot())
	}))

	mux.HandleFunc("DELETE /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := mgr.Stop(r.PathValue("id")); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /sessions/{id}/fixes", withSession(mgr, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		var f session.Fix
		if err := decode(r, &f); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !revgeo.ValidPoint(f.Latitude, f.Longitude) {
			writeError(w, http.StatusBadRequest, "coordinates out of range")
			return
		}
		res, err := s.HandleFix(r.Context(), f)
		if errors.Is(err, session.ErrStopped) {
			writeError(w, http.StatusGone, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	}))

	mux.HandleFunc("POST /sessions/{id}/prime", withSession(mgr, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		var req primeRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.CountryCode = normCode(req.CountryCode)
		if !catalog.ValidCode(req.CountryCode) {
			writeError(w, http.StatusBadRequest, "invalid countryCode")
			return
		}
		if err := s.Prime(req.CountryCode); err != nil {
			writeError(w, http.StatusGone, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	}))

	mux.HandleFunc("POST /sessions/{id}/reset", withSession(mgr, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		s.Reset()
		writeJSON(w, http.StatusOK, s.Snapshot())
	}))

	mux.HandleFunc("GET /sessions/{id}/events", withSession(mgr, serveEvents))

	mux.HandleFunc("GET /countries", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, det.All())
	})

	mux.HandleFunc("GET /countries/{code}", func(w http.ResponseWriter, r *http.Request) {
		info, ok := det.ByCode(r.PathValue("code"))
		if !ok {
			writeError(w, http.StatusNotFound, "country not in catalog")
			return
		}
		writeJSON(w, http.StatusOK, info)
	})

	// 无状态单次检测，不经过确认状态机
	mux.HandleFunc("GET /detect", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
		lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
		if err1 != nil || err2 != nil || !revgeo.ValidPoint(lat, lng) {
			writeError(w, http.StatusBadRequest, "lat/lng required")
			return
		}
		info, src := det.Detect(r.Context(), detector.Coordinates{Latitude: lat, Longitude: lng})
		writeJSON(w, http.StatusOK, map[string]any{"source": src, "country": info})
	})

	return mux
}

func withSession(mgr *session.Manager, h func(http.ResponseWriter, *http.Request, *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := mgr.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h(w, r, s)
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid json body")
	}
	return nil
}

// decodeOptional 允许空请求体
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errors.New("invalid json body")
}

func normCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Debug("api_encode_error", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
