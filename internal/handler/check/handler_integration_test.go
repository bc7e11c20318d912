package check

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/TomasB/geolookup/internal/data"
	"github.com/TomasB/geolookup/internal/geodat/geodattest"
)

const testMMDBPath = "../../../testdata/GeoLite2-Country-Test.mmdb"

func skipIfNoMMDB(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(testMMDBPath); os.IsNotExist(err) {
		t.Skip("test MMDB file not found; download it first")
	}
}

func setupIntegrationRouter(t *testing.T, paths ...string) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	set := data.NewSet(nil)
	if err := set.Open(paths...); err != nil {
		t.Fatalf("failed to open databases: %v", err)
	}
	t.Cleanup(func() { set.Close() })

	r := gin.New()
	h := NewHandler(set)
	r.POST("/api/v1/check", h.Check)
	return r
}

func legacyCountryDB(t *testing.T) string {
	return geodattest.NewCountry().
		AddCountry("2.125.160.0/24", "GB").
		AddCountry("216.160.83.0/24", "US").
		WriteFile(t, "GeoIP.dat")
}

func checkResponse(t *testing.T, router *gin.Engine, ip string, allowed ...string) CheckResponse {
	t.Helper()

	body, _ := json.Marshal(CheckRequest{IP: ip, AllowedCountries: allowed})
	req, _ := http.NewRequest("POST", "/api/v1/check", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp CheckResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func TestIntegration_LegacyDatabase(t *testing.T) {
	router := setupIntegrationRouter(t, legacyCountryDB(t))

	resp := checkResponse(t, router, "2.125.160.216", "GB", "DE")
	if !resp.Allowed || resp.Country != "GB" {
		t.Errorf("expected allowed GB, got %+v", resp)
	}

	resp = checkResponse(t, router, "2.125.160.216", "US", "CA")
	if resp.Allowed || resp.Country != "GB" {
		t.Errorf("expected denied GB, got %+v", resp)
	}

	resp = checkResponse(t, router, "216.160.83.56", "US")
	if !resp.Allowed || resp.Country != "US" {
		t.Errorf("expected allowed US, got %+v", resp)
	}

	resp = checkResponse(t, router, "10.0.0.1", "US")
	if resp.Allowed || resp.Country != "" {
		t.Errorf("expected unknown country, got %+v", resp)
	}
}

func TestIntegration_CheckAllowedGB(t *testing.T) {
	skipIfNoMMDB(t)
	router := setupIntegrationRouter(t, testMMDBPath)

	resp := checkResponse(t, router, "2.125.160.216", "GB", "DE")
	if !resp.Allowed {
		t.Error("expected allowed=true for GB IP with GB in allowed list")
	}
	if resp.Country != "GB" {
		t.Errorf("expected country GB, got %s", resp.Country)
	}
}

func TestIntegration_CheckDeniedGB(t *testing.T) {
	skipIfNoMMDB(t)
	router := setupIntegrationRouter(t, testMMDBPath)

	resp := checkResponse(t, router, "2.125.160.216", "US", "CA")
	if resp.Allowed {
		t.Error("expected allowed=false for GB IP with only US,CA allowed")
	}
	if resp.Country != "GB" {
		t.Errorf("expected country GB, got %s", resp.Country)
	}
}

func TestIntegration_CheckUS(t *testing.T) {
	skipIfNoMMDB(t)
	router := setupIntegrationRouter(t, testMMDBPath)

	resp := checkResponse(t, router, "216.160.83.56", "US")
	if !resp.Allowed {
		t.Error("expected allowed=true for US IP")
	}
	if resp.Country != "US" {
		t.Errorf("expected country US, got %s", resp.Country)
	}
}
