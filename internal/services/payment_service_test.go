package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
)

type stubPaymentStore struct {
	session  *models.Session
	getErr   error
	applyErr error

	appliedID     int64
	appliedStatus string
	appliedTxnID  *string
	applyCalls    int
}

func (s *stubPaymentStore) GetByID(_ context.Context, _ int64) (*models.Session, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.session, nil
}

// ApplyPaymentOutcome mirrors the repository's guard: completed is sticky,
// anything else takes the new outcome.
func (s *stubPaymentStore) ApplyPaymentOutcome(_ context.Context, sessionID int64, paymentStatus string, transactionID *string) (*models.Session, error) {
	s.applyCalls++
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	if s.session.PaymentStatus == models.PaymentCompleted {
		return nil, pgx.ErrNoRows
	}
	s.session.PaymentStatus = paymentStatus
	if transactionID != nil {
		s.session.TransactionID = transactionID
	}
	s.appliedID = sessionID
	s.appliedStatus = paymentStatus
	s.appliedTxnID = transactionID
	return s.session, nil
}

type stubRateReader struct {
	profile *models.CounsellorProfile
	err     error
}

func (s *stubRateReader) GetByUserID(_ context.Context, _ int64) (*models.CounsellorProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

func unpaidSession() *models.Session {
	return &models.Session{
		ID:            42,
		UserID:        1,
		CounsellorID:  7,
		Status:        models.SessionAccepted,
		PaymentStatus: models.PaymentPending,
	}
}

func TestInitiateBuildsSignedForm(t *testing.T) {
	rate := 1500.0
	service := &PaymentService{
		sessionRepo: &stubPaymentStore{session: unpaidSession()},
		profileRepo: &stubRateReader{profile: &models.CounsellorProfile{UserID: 7, HourlyRate: &rate}},
		secretKey:   "8gBm/:&EnhH.1/q",
		productCode: "EPAYTEST",
		successURL:  "https://example.com/ok",
		failureURL:  "https://example.com/fail",
	}

	form, err := service.Initiate(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if form.TotalAmount != "1500.00" || form.Amount != "1500.00" {
		t.Fatalf("expected amount 1500.00, got %q/%q", form.Amount, form.TotalAmount)
	}
	if form.ProductCode != "EPAYTEST" || form.SignedFieldNames != "total_amount,transaction_uuid,product_code" {
		t.Fatalf("unexpected form %+v", form)
	}
	if !strings.HasPrefix(form.TransactionUUID, "42-") {
		t.Fatalf("expected transaction uuid scoped to session 42, got %q", form.TransactionUUID)
	}

	// Recompute the signature independently.
	message := "total_amount=" + form.TotalAmount +
		",transaction_uuid=" + form.TransactionUUID +
		",product_code=" + form.ProductCode
	mac := hmac.New(sha256.New, []byte("8gBm/:&EnhH.1/q"))
	mac.Write([]byte(message))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if form.Signature != want {
		t.Fatalf("signature mismatch: got %q, want %q", form.Signature, want)
	}
}

func TestInitiateMintsFreshTransactionUUIDs(t *testing.T) {
	rate := 100.0
	service := &PaymentService{
		sessionRepo: &stubPaymentStore{session: unpaidSession()},
		profileRepo: &stubRateReader{profile: &models.CounsellorProfile{UserID: 7, HourlyRate: &rate}},
		secretKey:   "secret",
	}

	first, err := service.Initiate(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := service.Initiate(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first.TransactionUUID == second.TransactionUUID {
		t.Fatalf("expected distinct nonces, both %q", first.TransactionUUID)
	}
}

func TestInitiateGuards(t *testing.T) {
	rate := 100.0
	profile := &stubRateReader{profile: &models.CounsellorProfile{UserID: 7, HourlyRate: &rate}}

	service := &PaymentService{sessionRepo: &stubPaymentStore{session: unpaidSession()}, profileRepo: profile}
	if _, err := service.Initiate(context.Background(), 2, 42); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for other user, got %v", err)
	}

	paid := unpaidSession()
	paid.PaymentStatus = models.PaymentCompleted
	service = &PaymentService{sessionRepo: &stubPaymentStore{session: paid}, profileRepo: profile}
	if _, err := service.Initiate(context.Background(), 1, 42); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}

	service = &PaymentService{
		sessionRepo: &stubPaymentStore{session: unpaidSession()},
		profileRepo: &stubRateReader{err: pgx.ErrNoRows},
	}
	if _, err := service.Initiate(context.Background(), 1, 42); !errors.Is(err, ErrCounsellorRateMissing) {
		t.Fatalf("expected ErrCounsellorRateMissing for missing profile, got %v", err)
	}

	service = &PaymentService{
		sessionRepo: &stubPaymentStore{session: unpaidSession()},
		profileRepo: &stubRateReader{profile: &models.CounsellorProfile{UserID: 7}},
	}
	if _, err := service.Initiate(context.Background(), 1, 42); !errors.Is(err, ErrCounsellorRateMissing) {
		t.Fatalf("expected ErrCounsellorRateMissing for unset rate, got %v", err)
	}
}

func encodeCallback(t *testing.T, transactionUUID, status string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]string{
		"transaction_uuid": transactionUUID,
		"status":           status,
	})
	if err != nil {
		t.Fatalf("marshal callback: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestDecodeCallback(t *testing.T) {
	sessionID, transactionUUID, err := decodeCallback(encodeCallback(t, "42-abc-def", "COMPLETE"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sessionID != 42 || transactionUUID != "42-abc-def" {
		t.Fatalf("unexpected decode %d %q", sessionID, transactionUUID)
	}

	// URL-safe base64 is accepted too.
	raw, _ := json.Marshal(map[string]string{"transaction_uuid": "7-x", "status": "COMPLETE"})
	sessionID, _, err = decodeCallback(base64.URLEncoding.EncodeToString(raw))
	if err != nil || sessionID != 7 {
		t.Fatalf("expected session 7 from url-safe payload, got %d %v", sessionID, err)
	}
}

func TestDecodeCallbackRejectsGarbage(t *testing.T) {
	cases := []string{
		"not base64!!!",
		base64.StdEncoding.EncodeToString([]byte("not json")),
		encodeCallback(t, "", "COMPLETE"),
		encodeCallback(t, "no-separator-but-not-a-number", "COMPLETE"),
		encodeCallback(t, "nonsense", "COMPLETE"),
		encodeCallback(t, "-abc", "COMPLETE"),
		encodeCallback(t, "0-abc", "COMPLETE"),
	}
	for _, encoded := range cases {
		if _, _, err := decodeCallback(encoded); !errors.Is(err, ErrMalformedCallback) {
			t.Fatalf("expected ErrMalformedCallback for %q, got %v", encoded, err)
		}
	}
}

func TestReconcileAppliesOutcome(t *testing.T) {
	store := &stubPaymentStore{session: unpaidSession()}
	service := &PaymentService{sessionRepo: store}

	if err := service.Reconcile(context.Background(), encodeCallback(t, "42-abc", "COMPLETE"), true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if store.appliedID != 42 || store.appliedStatus != models.PaymentCompleted {
		t.Fatalf("unexpected outcome %d %q", store.appliedID, store.appliedStatus)
	}
	if store.appliedTxnID == nil || *store.appliedTxnID != "42-abc" {
		t.Fatalf("expected transaction id recorded, got %v", store.appliedTxnID)
	}
}

func TestReconcileFailureClearsTransactionID(t *testing.T) {
	store := &stubPaymentStore{session: unpaidSession()}
	service := &PaymentService{sessionRepo: store}

	if err := service.Reconcile(context.Background(), encodeCallback(t, "42-abc", "FAILED"), false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if store.appliedStatus != models.PaymentFailed {
		t.Fatalf("expected failed outcome, got %q", store.appliedStatus)
	}
	if store.appliedTxnID != nil {
		t.Fatalf("expected no transaction id on failure, got %v", *store.appliedTxnID)
	}
}

func TestReconcileFailureThenSuccessCompletes(t *testing.T) {
	// A failed payment stays open: the user re-initiates, and the fresh
	// transaction's success callback must still complete the session.
	store := &stubPaymentStore{session: unpaidSession()}
	service := &PaymentService{sessionRepo: store}

	if err := service.Reconcile(context.Background(), encodeCallback(t, "42-abc", "FAILED"), false); err != nil {
		t.Fatalf("failure callback: %v", err)
	}
	if store.session.PaymentStatus != models.PaymentFailed {
		t.Fatalf("expected failed after first callback, got %q", store.session.PaymentStatus)
	}

	if err := service.Reconcile(context.Background(), encodeCallback(t, "42-def", "COMPLETE"), true); err != nil {
		t.Fatalf("retried success callback: %v", err)
	}
	if store.session.PaymentStatus != models.PaymentCompleted {
		t.Fatalf("expected completed after retry, got %q", store.session.PaymentStatus)
	}
	if store.session.TransactionID == nil || *store.session.TransactionID != "42-def" {
		t.Fatalf("expected retried transaction recorded, got %v", store.session.TransactionID)
	}
}

func TestReconcileCompletedIsSticky(t *testing.T) {
	store := &stubPaymentStore{session: unpaidSession()}
	service := &PaymentService{sessionRepo: store}

	if err := service.Reconcile(context.Background(), encodeCallback(t, "42-abc", "COMPLETE"), true); err != nil {
		t.Fatalf("success callback: %v", err)
	}

	// Duplicate success and a late failure callback are both dropped.
	if err := service.Reconcile(context.Background(), encodeCallback(t, "42-abc", "COMPLETE"), true); err != nil {
		t.Fatalf("expected duplicate callback to be dropped, got %v", err)
	}
	if err := service.Reconcile(context.Background(), encodeCallback(t, "42-abc", "FAILED"), false); err != nil {
		t.Fatalf("expected late failure callback to be dropped, got %v", err)
	}
	if store.session.PaymentStatus != models.PaymentCompleted {
		t.Fatalf("expected completed to stick, got %q", store.session.PaymentStatus)
	}
	if store.session.TransactionID == nil || *store.session.TransactionID != "42-abc" {
		t.Fatalf("expected original transaction kept, got %v", store.session.TransactionID)
	}
}

func TestReconcileRejectsMalformedPayload(t *testing.T) {
	store := &stubPaymentStore{session: unpaidSession()}
	service := &PaymentService{sessionRepo: store}

	if err := service.Reconcile(context.Background(), "???", true); !errors.Is(err, ErrMalformedCallback) {
		t.Fatalf("expected ErrMalformedCallback, got %v", err)
	}
	if store.applyCalls != 0 {
		t.Fatalf("expected no apply attempt for garbage, got %d", store.applyCalls)
	}
}
