package coremain

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/pmkol/rrcache-x/pkg/dnsutils"
	"github.com/pmkol/rrcache-x/pkg/resolver_cache"
	"github.com/pmkol/rrcache-x/pkg/rrset_cache"
)

const maxUpdateBodySize = 1 << 20

// apiHandler serves the cache under /cache/.
//
//	GET  /cache/lookup?name=&type=&class=  cached RRset in master file format
//	POST /cache/update?trust=              body is master file text
//	GET  /cache/stats                      counters of every class cache
type apiHandler struct {
	rc     *resolver_cache.ResolverCache
	logger *zap.Logger
	now    func() time.Time
	mux    *http.ServeMux
}

func newAPIHandler(rc *resolver_cache.ResolverCache, lg *zap.Logger) *apiHandler {
	h := &apiHandler{
		rc:     rc,
		logger: lg,
		now:    time.Now,
		mux:    http.NewServeMux(),
	}
	h.mux.HandleFunc("/cache/lookup", h.lookup)
	h.mux.HandleFunc("/cache/update", h.update)
	h.mux.HandleFunc("/cache/stats", h.stats)
	return h
}

func (h *apiHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.mux.ServeHTTP(w, req)
}

func (h *apiHandler) warnErr(req *http.Request, err error) {
	h.logger.Warn(err.Error(), zap.String("from", req.RemoteAddr), zap.String("method", req.Method), zap.String("url", req.RequestURI))
}

func (h *apiHandler) lookup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := req.URL.Query()
	name := q.Get("name")
	if _, ok := dns.IsDomainName(name); len(name) == 0 || !ok {
		http.Error(w, "invalid name", http.StatusBadRequest)
		return
	}
	rtype, err := queryUint16(q.Get("type"), "A", dnsutils.StringToQtype)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	class, err := queryUint16(q.Get("class"), "IN", dnsutils.StringToQclass)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e, err := h.rc.Lookup(name, rtype, class)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if e == nil {
		http.Error(w, "not cached", http.StatusNotFound)
		return
	}

	now := h.now()
	b := new(bytes.Buffer)
	fmt.Fprintf(b, ";; key %s\n", e.Key())
	fmt.Fprintf(b, ";; trust %s\n", e.TrustLevel())
	fmt.Fprintf(b, ";; expire %s\n", e.ExpireAt().UTC().Format(time.RFC3339))
	for _, rr := range e.RRsetWithTTL(now) {
		fmt.Fprintln(b, rr.String())
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(b.Bytes())
}

func (h *apiHandler) update(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	trust, err := rrset_cache.ParseTrustLevel(req.URL.Query().Get("trust"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rrs, err := parseMasterFile(http.MaxBytesReader(w, req.Body, maxUpdateBodySize))
	if err != nil {
		h.warnErr(req, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(rrs) == 0 {
		http.Error(w, "no record", http.StatusBadRequest)
		return
	}

	// RRsets are applied in order. The first invalid one stops the request,
	// the ones before it stay cached.
	b := new(bytes.Buffer)
	status := http.StatusOK
	for _, rrset := range dnsutils.SplitRRsets(rrs) {
		res, err := h.rc.Update(rrset, trust)
		if err != nil {
			h.warnErr(req, err)
			fmt.Fprintf(b, "error %v\n", err)
			status = http.StatusBadRequest
			break
		}
		action := "applied"
		if !res.Applied {
			action = "kept"
		}
		fmt.Fprintf(b, "%s %s %s\n", action, res.Entry.Key(), res.Entry.TrustLevel())
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write(b.Bytes())
}

func (h *apiHandler) stats(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	b := new(bytes.Buffer)
	for _, class := range h.rc.Classes() {
		cc := h.rc.Cache(class)
		s := cc.Stats()
		fmt.Fprintf(b, "%s entries=%d capacity=%d hits=%d misses=%d expired=%d evictions=%d updates=%d rejected=%d\n",
			dnsutils.QclassToString(class), cc.Len(), cc.Cap(),
			s.Hits, s.Misses, s.Expired, s.Evictions, s.Updates, s.Rejected)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(b.Bytes())
}

func queryUint16(s, def string, parse func(string) (uint16, error)) (uint16, error) {
	if len(s) == 0 {
		s = def
	}
	return parse(s)
}

func parseMasterFile(r io.Reader) ([]dns.RR, error) {
	zp := dns.NewZoneParser(r, ".", "")
	var rrs []dns.RR
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		rrs = append(rrs, rr)
	}
	if err := zp.Err(); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, fmt.Errorf("body exceeds %d bytes", maxUpdateBodySize)
		}
		return nil, err
	}
	return rrs, nil
}
