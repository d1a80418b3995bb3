package server

import "net/http"

// corsPolicy answers cross-origin requests for a fixed list of origins.
// A "*" entry allows any origin.
type corsPolicy struct {
	any     bool
	origins map[string]bool
}

func newCORSPolicy(origins []string) *corsPolicy {
	if len(origins) == 0 {
		return nil
	}
	p := &corsPolicy{origins: make(map[string]bool, len(origins))}
	for _, o := range origins {
		if o == "*" {
			p.any = true
		}
		p.origins[o] = true
	}
	return p
}

func (p *corsPolicy) apply(w http.ResponseWriter, r *http.Request) {
	if p == nil {
		return
	}
	origin := r.Header.Get("Origin")
	if origin == "" || !(p.any || p.origins[origin]) {
		return
	}
	hdr := w.Header()
	if p.any {
		hdr.Set("Access-Control-Allow-Origin", "*")
	} else {
		hdr.Set("Access-Control-Allow-Origin", origin)
		hdr.Add("Vary", "Origin")
	}
	if r.Method != http.MethodOptions {
		return
	}
	if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
		hdr.Set("Access-Control-Allow-Headers", req)
	}
	hdr.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
}
