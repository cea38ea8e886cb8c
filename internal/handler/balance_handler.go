package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Immellstorn/balance-app/internal/cqrs"
	"github.com/Immellstorn/balance-app/internal/middleware"
	"github.com/Immellstorn/balance-app/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// BalanceCommander defines the write-side operations used by BalanceHandler.
type BalanceCommander interface {
	Deposit(cqrs.DepositCommand) (*models.OperationResult, error)
	Withdraw(cqrs.WithdrawCommand) (*models.OperationResult, error)
	Transfer(cqrs.TransferCommand) (*models.TransferResult, error)
}

// BalanceQuerier defines the read-side operations used by BalanceHandler.
type BalanceQuerier interface {
	GetBalance(cqrs.GetBalanceQuery) (*models.BalanceView, error)
}

type BalanceHandler struct {
	commands BalanceCommander
	queries  BalanceQuerier
}

func NewBalanceHandler(commands BalanceCommander, queries BalanceQuerier) *BalanceHandler {
	return &BalanceHandler{commands: commands, queries: queries}
}

// Amount decodes a request amount leniently: a value that is not a valid
// decimal decodes as zero instead of failing the whole body decode, so the
// engine rejects it as an invalid amount (a field-level 422, not a 400).
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	if err := a.Decimal.UnmarshalJSON(data); err != nil {
		a.Decimal = decimal.Zero
	}
	return nil
}

type DepositRequest struct {
	UserID  int64  `json:"user_id" validate:"required,gte=1"`
	Amount  Amount `json:"amount"`
	Comment string `json:"comment" validate:"omitempty,max=255"`
}

type WithdrawRequest struct {
	UserID  int64  `json:"user_id" validate:"required,gte=1"`
	Amount  Amount `json:"amount"`
	Comment string `json:"comment" validate:"omitempty,max=255"`
}

type TransferRequest struct {
	FromUserID int64  `json:"from_user_id" validate:"required,gte=1"`
	ToUserID   int64  `json:"to_user_id" validate:"required,gte=1"`
	Amount     Amount `json:"amount"`
	Comment    string `json:"comment" validate:"omitempty,max=255"`
}

func (h *BalanceHandler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "body", "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := h.commands.Deposit(cqrs.DepositCommand{
		UserID:  req.UserID,
		Amount:  req.Amount.Decimal,
		Comment: req.Comment,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *BalanceHandler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "body", "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := h.commands.Withdraw(cqrs.WithdrawCommand{
		UserID:  req.UserID,
		Amount:  req.Amount.Decimal,
		Comment: req.Comment,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *BalanceHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "body", "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := h.commands.Transfer(cqrs.TransferCommand{
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Amount:     req.Amount.Decimal,
		Comment:    req.Comment,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *BalanceHandler) GetBalance(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID < 1 {
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "user_id", "User id must be a positive integer")
		return
	}

	view, err := h.queries.GetBalance(cqrs.GetBalanceQuery{UserID: userID})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": view.UserID,
		"balance": view.Balance,
	})
}

// respondLedgerError maps engine error kinds to HTTP statuses and the
// {error, errors} payload the API contract expects.
func respondLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "user_id", "User not found")
	case errors.Is(err, models.ErrFromUserNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "from_user_id", "From user not found")
	case errors.Is(err, models.ErrToUserNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "to_user_id", "To user not found")
	case errors.Is(err, models.ErrSameUser):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "to_user_id", "Cannot transfer to same user")
	case errors.Is(err, models.ErrInvalidAmount):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "amount", "Amount must be greater than 0")
	case errors.Is(err, models.ErrInsufficientFunds):
		middleware.RespondWithError(c, http.StatusConflict, "amount", "Insufficient funds")
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, "server", "Internal server error")
	}
}
