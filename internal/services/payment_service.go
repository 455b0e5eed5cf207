package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/models"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/repository"
)

var (
	ErrAlreadyPaid           = errors.New("session already paid")
	ErrCounsellorRateMissing = errors.New("counsellor hourly rate not set")
	ErrMalformedCallback     = errors.New("malformed payment callback")
)

const signedFieldNames = "total_amount,transaction_uuid,product_code"

// transactionSeparator joins the session id and the nonce inside a
// transaction uuid, so a callback is self-describing and needs no lookup
// table to find its session.
const transactionSeparator = "-"

type paymentSessionStore interface {
	GetByID(ctx context.Context, sessionID int64) (*models.Session, error)
	ApplyPaymentOutcome(ctx context.Context, sessionID int64, paymentStatus string, transactionID *string) (*models.Session, error)
}

type rateReader interface {
	GetByUserID(ctx context.Context, userID int64) (*models.CounsellorProfile, error)
}

type PaymentService struct {
	sessionRepo paymentSessionStore
	profileRepo rateReader
	secretKey   string
	productCode string
	successURL  string
	failureURL  string
}

func NewPaymentService(
	sessionRepo *repository.SessionRepository,
	profileRepo *repository.CounsellorProfileRepository,
	secretKey string,
	productCode string,
	successURL string,
	failureURL string,
) *PaymentService {
	return &PaymentService{
		sessionRepo: sessionRepo,
		profileRepo: profileRepo,
		secretKey:   secretKey,
		productCode: productCode,
		successURL:  successURL,
		failureURL:  failureURL,
	}
}

// PaymentForm carries the fields the client posts to the gateway's payment
// page, signature included.
type PaymentForm struct {
	Amount                string `json:"amount"`
	TaxAmount             string `json:"tax_amount"`
	TotalAmount           string `json:"total_amount"`
	TransactionUUID       string `json:"transaction_uuid"`
	ProductCode           string `json:"product_code"`
	ProductServiceCharge  string `json:"product_service_charge"`
	ProductDeliveryCharge string `json:"product_delivery_charge"`
	SuccessURL            string `json:"success_url"`
	FailureURL            string `json:"failure_url"`
	SignedFieldNames      string `json:"signed_field_names"`
	Signature             string `json:"signature"`
}

// Initiate builds a signed gateway form for a one-hour session priced at the
// counsellor's hourly rate. Each call mints a fresh transaction uuid scoped
// to the session.
func (s *PaymentService) Initiate(
	ctx context.Context,
	actorID int64,
	sessionID int64,
) (*PaymentForm, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != actorID {
		return nil, ErrForbidden
	}
	if session.PaymentStatus == models.PaymentCompleted {
		return nil, ErrAlreadyPaid
	}

	profile, err := s.profileRepo.GetByUserID(ctx, session.CounsellorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCounsellorRateMissing
		}
		return nil, err
	}
	if profile.HourlyRate == nil || *profile.HourlyRate <= 0 {
		return nil, ErrCounsellorRateMissing
	}

	amount := strconv.FormatFloat(*profile.HourlyRate, 'f', 2, 64)
	transactionUUID := fmt.Sprintf("%d%s%s", session.ID, transactionSeparator, uuid.NewString())

	form := &PaymentForm{
		Amount:                amount,
		TaxAmount:             "0",
		TotalAmount:           amount,
		TransactionUUID:       transactionUUID,
		ProductCode:           s.productCode,
		ProductServiceCharge:  "0",
		ProductDeliveryCharge: "0",
		SuccessURL:            s.successURL,
		FailureURL:            s.failureURL,
		SignedFieldNames:      signedFieldNames,
	}
	form.Signature = s.sign(form.TotalAmount, form.TransactionUUID, form.ProductCode)
	return form, nil
}

// sign computes base64(HMAC-SHA256) over the gateway's fixed, ordered field
// string. The field order must match signed_field_names exactly.
func (s *PaymentService) sign(totalAmount, transactionUUID, productCode string) string {
	message := fmt.Sprintf(
		"total_amount=%s,transaction_uuid=%s,product_code=%s",
		totalAmount, transactionUUID, productCode,
	)
	mac := hmac.New(sha256.New, []byte(s.secretKey))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type gatewayCallback struct {
	TransactionUUID string `json:"transaction_uuid"`
	Status          string `json:"status"`
}

// decodeCallback unpacks the gateway's base64 JSON blob and recovers the
// originating session id from the transaction uuid.
func decodeCallback(encoded string) (int64, string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return 0, "", ErrMalformedCallback
		}
	}

	var callback gatewayCallback
	if err := json.Unmarshal(raw, &callback); err != nil {
		return 0, "", ErrMalformedCallback
	}
	if callback.TransactionUUID == "" {
		return 0, "", ErrMalformedCallback
	}

	idPart, _, found := strings.Cut(callback.TransactionUUID, transactionSeparator)
	if !found {
		return 0, "", ErrMalformedCallback
	}
	sessionID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || sessionID <= 0 {
		return 0, "", ErrMalformedCallback
	}
	return sessionID, callback.TransactionUUID, nil
}

// Reconcile applies a gateway callback to the session's payment status.
// Completed is terminal: once a success callback lands, duplicates and late
// failure callbacks become no-ops. A failed payment is not terminal; the user
// can initiate a fresh transaction and its success callback completes the
// session.
func (s *PaymentService) Reconcile(ctx context.Context, encodedPayload string, success bool) error {
	sessionID, transactionUUID, err := decodeCallback(encodedPayload)
	if err != nil {
		return err
	}

	paymentStatus := models.PaymentFailed
	var transactionID *string
	if success {
		paymentStatus = models.PaymentCompleted
		transactionID = &transactionUUID
	}

	if _, err := s.sessionRepo.ApplyPaymentOutcome(ctx, sessionID, paymentStatus, transactionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already paid, or the session id does not exist; either way
			// the callback is dropped.
			return nil
		}
		return err
	}
	return nil
}
