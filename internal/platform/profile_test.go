package platform

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseMemberCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		html    string
		want    int64
		wantErr bool
	}{
		{name: "space separated", html: `<div class="tgme_page_extra">12 345 subscribers</div>`, want: 12345},
		{name: "comma separated", html: `<div class="x tgme_page_extra">1,024 members</div>`, want: 1024},
		{name: "thousands suffix", html: `<div class="tgme_page_extra">1.2K subscribers</div>`, want: 1200},
		{name: "millions suffix", html: `<div class="tgme_page_extra"><span>3M</span> subscribers</div>`, want: 3000000},
		{name: "members word is not a suffix", html: `<div class="tgme_page_extra">7 members</div>`, want: 7},
		{name: "no count element", html: `<div class="tgme_page_title">Channel</div>`, wantErr: true},
		{name: "no number", html: `<div class="tgme_page_extra">private group</div>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseMemberCount(strings.NewReader("<html><body>" + tt.html + "</body></html>"))
			if tt.wantErr {
				if !errors.Is(err, ErrCountNotFound) {
					t.Errorf("error = %v, want ErrCountNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseMemberCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProfileEnricher_MemberCount(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "ua/1.0" {
			http.Error(w, "missing user agent", http.StatusBadRequest)
			return
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<div class="tgme_page_extra">99 subscribers</div>`)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	e := NewProfileEnricher(srv.Client(), srv.URL+"/", "ua/1.0")
	n, err := e.MemberCount(t.Context(), "news")
	if err != nil || n != 99 {
		t.Errorf("MemberCount() = %d, %v", n, err)
	}
	if _, err := e.MemberCount(t.Context(), "missing"); err == nil {
		t.Error("expected error for 404 page")
	}
}
