package rates

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMarketRate_Primary(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"serie":[{"valor":941.71,"fecha":"2024-11-21T03:00:00.000Z"}]}`))
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("fallback must not be called when primary succeeds")
	}))
	defer fallback.Close()

	client := NewClient(primary.URL, fallback.URL, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rate, asOf, ok := client.MarketRate(ctx)
	if !ok {
		t.Fatalf("MarketRate not ok")
	}
	if rate != 941.71 {
		t.Fatalf("rate = %v, want 941.71", rate)
	}
	if asOf != "2024-11-21T03:00:00.000Z" {
		t.Fatalf("asOf = %q", asOf)
	}
}

func TestMarketRate_FallbackOnPrimaryFailure(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Valor":"945,20","Fecha":"21-11-2024"}`))
	}))
	defer fallback.Close()

	client := NewClient(primary.URL, fallback.URL, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rate, asOf, ok := client.MarketRate(ctx)
	if !ok {
		t.Fatalf("MarketRate not ok")
	}
	if rate != 945.20 {
		t.Fatalf("rate = %v, want 945.20", rate)
	}
	if asOf != "21-11-2024" {
		t.Fatalf("asOf = %q", asOf)
	}
}

func TestMarketRate_FallbackOnMalformedPrimary(t *testing.T) {
	// Ответ без ключа serie должен трактоваться как сбой источника.
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"codigo":"dolar"}`))
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Valor":"931,00","Fecha":"20-11-2024"}`))
	}))
	defer fallback.Close()

	client := NewClient(primary.URL, fallback.URL, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rate, _, ok := client.MarketRate(ctx)
	if !ok {
		t.Fatalf("MarketRate not ok")
	}
	if rate != 931.00 {
		t.Fatalf("rate = %v, want 931.00", rate)
	}
}

func TestMarketRate_BothSourcesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rate, asOf, ok := client.MarketRate(ctx)
	if ok {
		t.Fatalf("MarketRate ok, want failure")
	}
	if rate != 0 || asOf != "" {
		t.Fatalf("rate = %v, asOf = %q, want zero values", rate, asOf)
	}
}

func customsPage(month, value string) string {
	return fmt.Sprintf(`<html><body>
<table cellpadding="2" cellspacing="2" border="1" align="left">
<tr><td>A&ntilde;o</td><td>Mes</td><td>Valor</td><td>Vigencia</td></tr>
<tr><td>2024</td><td>Octubre</td><td>948,30</td><td>01-10-2024</td></tr>
<tr><td>2024</td><td>%s</td><td>%s</td><td>01-11-2024</td></tr>
</table>
</body></html>`, month, value)
}

func TestCustomsRate_CurrentMonth(t *testing.T) {
	month := SpanishMonth(time.Now())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(customsPage(month, "1.002,51")))
	}))
	defer srv.Close()

	client := NewClient("", "", srv.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rate, ok := client.CustomsRate(ctx)
	if !ok {
		t.Fatalf("CustomsRate not ok")
	}
	if rate != 1002.51 {
		t.Fatalf("rate = %v, want 1002.51", rate)
	}
}

func TestCustomsRate_MonthRowMissing(t *testing.T) {
	// Таблица есть, но строки за текущий месяц нет.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(customsPage("Nunca", "1,00")))
	}))
	defer srv.Close()

	client := NewClient("", "", srv.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, ok := client.CustomsRate(ctx); ok {
		t.Fatalf("CustomsRate ok, want failure for missing month row")
	}
}

func TestCustomsRate_TableMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><p>mantenimiento</p></body></html>`))
	}))
	defer srv.Close()

	client := NewClient("", "", srv.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, ok := client.CustomsRate(ctx); ok {
		t.Fatalf("CustomsRate ok, want failure for missing table")
	}
}

func TestCustomsRate_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient("", "", srv.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, ok := client.CustomsRate(ctx); ok {
		t.Fatalf("CustomsRate ok, want failure for unreachable server")
	}
}
