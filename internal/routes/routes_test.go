package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/somulo1/chamaledger/internal/config"
	"github.com/somulo1/chamaledger/internal/logging"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	cfg := config.Config{Env: "development", DefaultCurrency: "KES"}
	if err := Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	_ = json.Unmarshal(payload, &decoded)
	return resp.StatusCode, decoded
}

func getJSON(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	_ = json.Unmarshal(payload, &decoded)
	return resp.StatusCode, decoded
}

func TestDepositThenBalanceAndHistory(t *testing.T) {
	app := setupTestApp(t)
	userID := uuid.NewString()

	status, body := postJSON(t, app, "/api/v1/transactions", fmt.Sprintf(
		`{"type":"deposit","amount":5000,"destination_user_id":%q,"description":"till deposit"}`, userID))
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", status, body)
	}
	if body["type"] != "deposit" || body["status"] != "completed" {
		t.Fatalf("unexpected transaction payload: %v", body)
	}

	status, body = getJSON(t, app, "/api/v1/wallets/balance?user_id="+userID)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	if body["balance"].(float64) != 5000 {
		t.Fatalf("expected balance 5000, got %v", body["balance"])
	}

	status, body = getJSON(t, app, "/api/v1/transactions?user_id="+userID)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	records := body["transactions"].([]any)
	if len(records) != 1 {
		t.Fatalf("expected one transaction, got %d", len(records))
	}
}

func TestTransferBetweenUsers(t *testing.T) {
	app := setupTestApp(t)
	alice := uuid.NewString()
	bob := uuid.NewString()

	if status, body := postJSON(t, app, "/api/v1/transactions", fmt.Sprintf(
		`{"type":"deposit","amount":10000,"destination_user_id":%q}`, alice)); status != fiber.StatusCreated {
		t.Fatalf("seed deposit failed: %d %v", status, body)
	}

	status, body := postJSON(t, app, "/api/v1/transactions", fmt.Sprintf(
		`{"type":"transfer","amount":3000,"source_user_id":%q,"destination_user_id":%q}`, alice, bob))
	if status != fiber.StatusCreated {
		t.Fatalf("transfer failed: %d %v", status, body)
	}

	_, aliceBody := getJSON(t, app, "/api/v1/wallets/balance?user_id="+alice)
	_, bobBody := getJSON(t, app, "/api/v1/wallets/balance?user_id="+bob)
	if aliceBody["balance"].(float64) != 7000 || bobBody["balance"].(float64) != 3000 {
		t.Fatalf("unexpected balances: %v / %v", aliceBody["balance"], bobBody["balance"])
	}
}

func TestWithdrawalInsufficientFundsSurfaces(t *testing.T) {
	app := setupTestApp(t)
	userID := uuid.NewString()

	if status, _ := postJSON(t, app, "/api/v1/transactions", fmt.Sprintf(
		`{"type":"deposit","amount":100,"destination_user_id":%q}`, userID)); status != fiber.StatusCreated {
		t.Fatalf("seed deposit failed")
	}

	status, _ := postJSON(t, app, "/api/v1/transactions", fmt.Sprintf(
		`{"type":"withdrawal","amount":500,"source_user_id":%q}`, userID))
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for insufficient funds, got %d", status)
	}

	_, body := getJSON(t, app, "/api/v1/wallets/balance?user_id="+userID)
	if body["balance"].(float64) != 100 {
		t.Fatalf("balance changed on rejected withdrawal: %v", body["balance"])
	}
}

func TestContributionIntoChama(t *testing.T) {
	app := setupTestApp(t)
	member := uuid.NewString()
	chama := uuid.NewString()

	if status, _ := postJSON(t, app, "/api/v1/transactions", fmt.Sprintf(
		`{"type":"deposit","amount":2000,"destination_user_id":%q}`, member)); status != fiber.StatusCreated {
		t.Fatalf("seed deposit failed")
	}

	status, body := postJSON(t, app, "/api/v1/transactions", fmt.Sprintf(
		`{"type":"contribution","amount":500,"source_user_id":%q,"destination_chama_id":%q}`, member, chama))
	if status != fiber.StatusCreated {
		t.Fatalf("contribution failed: %d %v", status, body)
	}

	_, chamaBody := getJSON(t, app, "/api/v1/wallets/balance?chama_id="+chama)
	if chamaBody["balance"].(float64) != 500 {
		t.Fatalf("expected chama balance 500, got %v", chamaBody["balance"])
	}
}

func TestResolveWalletEndpoint(t *testing.T) {
	app := setupTestApp(t)
	chama := uuid.NewString()

	status, body := postJSON(t, app, "/api/v1/wallets/resolve", fmt.Sprintf(`{"chama_id":%q}`, chama))
	if status != fiber.StatusOK {
		t.Fatalf("resolve failed: %d %v", status, body)
	}
	if body["chama_id"] != chama || body["balance"].(float64) != 0 {
		t.Fatalf("unexpected wallet payload: %v", body)
	}

	again, body2 := postJSON(t, app, "/api/v1/wallets/resolve", fmt.Sprintf(`{"chama_id":%q}`, chama))
	if again != fiber.StatusOK || body2["id"] != body["id"] {
		t.Fatalf("resolve is not idempotent: %v vs %v", body, body2)
	}
}

func TestHealthRoute(t *testing.T) {
	app := setupTestApp(t)
	status, _ := getJSON(t, app, "/healthz")
	if status != fiber.StatusOK {
		t.Fatalf("expected healthy, got %d", status)
	}
}
