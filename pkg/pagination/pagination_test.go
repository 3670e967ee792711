package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextWithQuery(""))
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_LimitOffset(t *testing.T) {
	p := FromContext(contextWithQuery("limit=10&offset=30"))
	if p.Limit != 10 || p.Offset != 30 {
		t.Errorf("expected 10/30, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_PageNumber(t *testing.T) {
	p := FromContext(contextWithQuery("page=3&limit=7"))
	if p.Limit != 7 {
		t.Errorf("expected limit 7, got %d", p.Limit)
	}
	if p.Offset != 14 {
		t.Errorf("expected offset 14 for page 3, got %d", p.Offset)
	}
}

func TestFromContext_CapsLimit(t *testing.T) {
	p := FromContext(contextWithQuery("limit=5000"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	resp := NewResponse([]int{1, 2, 3}, 10, 3, 0)
	if !resp.HasMore {
		t.Error("expected has_more true with 10 total and 3 returned")
	}

	resp = NewResponse([]int{1}, 4, 3, 3)
	if resp.HasMore {
		t.Error("expected has_more false on the last page")
	}
}

func TestParams_SQL(t *testing.T) {
	p := Params{Limit: 7, Offset: 14}
	if got := p.SQL(); got != "LIMIT 7 OFFSET 14" {
		t.Errorf("unexpected SQL clause: %q", got)
	}
}
