package handler

import (
	"errors"
	"strconv"
	"time"

	"homebank/internal/audit"
	"homebank/internal/config"
	"homebank/internal/repository"
	"homebank/internal/service"
	"homebank/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	userService      *service.UserService
	transferService  *service.TransferService
	creditService    *service.CreditService
	billingService   *service.BillingService
	savingsService   *service.SavingsService
	allowanceService *service.AllowanceService
	rewardService    *service.RewardService

	userRepo    *repository.UserRepository
	accountRepo *repository.AccountRepository
	txRepo      *repository.TransactionRepository
	historyRepo *repository.CreditHistoryRepository
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	auditLog := audit.NewLogger(cfg.Log.Dir)
	return &Handler{
		userService:      service.NewUserService(db, &cfg.Credit),
		transferService:  service.NewTransferService(db, &cfg.Credit, auditLog),
		creditService:    service.NewCreditService(db, rdb, &cfg.Credit, auditLog),
		billingService:   service.NewBillingService(db, rdb, &cfg.Credit, cfg.Kafka.Topic.CreditSnapshot, auditLog),
		savingsService:   service.NewSavingsService(db, auditLog),
		allowanceService: service.NewAllowanceService(db, auditLog),
		rewardService:    service.NewRewardService(db, cfg.Rewards, auditLog),
		userRepo:         repository.NewUserRepository(db),
		accountRepo:      repository.NewAccountRepository(db),
		txRepo:           repository.NewTransactionRepository(db),
		historyRepo:      repository.NewCreditHistoryRepository(db),
	}
}

// writeServiceError 把服务层错误映射到响应码
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		response.BusinessError(c, response.CodeUserNotFound, err.Error())
	case errors.Is(err, repository.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, repository.ErrUsernameExists):
		response.BusinessError(c, response.CodeUsernameExists, err.Error())
	case service.IsInsufficientFunds(err):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
	case errors.Is(err, service.ErrOverCreditLimit):
		response.BusinessError(c, response.CodeOverCreditLimit, err.Error())
	case errors.Is(err, service.ErrOverpayCredit):
		response.BusinessError(c, response.CodeOverpayCredit, err.Error())
	case errors.Is(err, service.ErrBankRequiresParent),
		errors.Is(err, service.ErrNotAccountOwner),
		errors.Is(err, service.ErrBadCredentials):
		response.BusinessError(c, response.CodePermissionDenied, err.Error())
	case errors.Is(err, service.ErrInvalidReward):
		response.BusinessError(c, response.CodeInvalidReward, err.Error())
	case errors.Is(err, service.ErrNotEnoughPoints):
		response.BusinessError(c, response.CodeNotEnoughPoints, err.Error())
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrSameAccount),
		errors.Is(err, service.ErrBothBank),
		errors.Is(err, service.ErrCreditEndpoint),
		errors.Is(err, service.ErrSavingsDestination),
		errors.Is(err, service.ErrMinSavingsTransfer):
		response.BusinessError(c, response.CodeInvalidTransfer, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 用户相关接口
// ============================================================

// CreateUser 开户
// POST /api/v1/user/create
func (h *Handler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.userService.CreateUser(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// GetUser 查询用户概要
// GET /api/v1/user/detail?user_id=xxx
func (h *Handler) GetUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	accounts, err := h.accountRepo.ListByUserID(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user":     user,
		"accounts": accounts,
	})
}

// ============================================================
// 账户相关接口
// ============================================================

// ListAccounts 查询用户全部账户
// GET /api/v1/account/list?user_id=xxx
func (h *Handler) ListAccounts(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	accounts, err := h.accountRepo.ListByUserID(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, accounts)
}

// GetBalance 查询单个账户余额
// GET /api/v1/account/balance?account_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Query("account_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "account_id 参数错误")
		return
	}

	account, err := h.accountRepo.GetByID(c.Request.Context(), accountID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := gin.H{
		"account_id": account.ID,
		"type":       account.Type,
		"balance":    account.Balance,
	}
	if account.IsCredit() {
		resp["credit_limit"] = account.CreditLimit
		resp["available_credit"] = account.AvailableCredit()
		resp["due_date"] = account.DueDate
		resp["past_due"] = account.PastDue
	}
	response.Success(c, resp)
}

// ============================================================
// 转账接口
// ============================================================

// TransferRequest 转账请求
// from/to 二选一填 account_id，留空表示银行端（仅家长可用）
type TransferRequest struct {
	ActorUserID   int64   `json:"actor_user_id" binding:"required"`
	FromAccountID *int64  `json:"from_account_id"`
	ToAccountID   *int64  `json:"to_account_id"`
	Amount        float64 `json:"amount" binding:"required"`
	Description   string  `json:"description"`
}

// Transfer 执行转账
// POST /api/v1/transfer/execute
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	from := service.BankEndpoint()
	if req.FromAccountID != nil {
		from = service.AccountEndpoint(*req.FromAccountID)
	}
	to := service.BankEndpoint()
	if req.ToAccountID != nil {
		to = service.AccountEndpoint(*req.ToAccountID)
	}

	result, err := h.transferService.Transfer(c.Request.Context(), &service.TransferRequest{
		ActorUserID: req.ActorUserID,
		From:        from,
		To:          to,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 信用借还接口
// ============================================================

// CreditOpRequest 借款/还款请求
type CreditOpRequest struct {
	UserID int64   `json:"user_id" binding:"required"`
	Amount float64 `json:"amount" binding:"required"`
}

// CreditWithdraw 信用借款
// POST /api/v1/credit/withdraw
func (h *Handler) CreditWithdraw(c *gin.Context) {
	var req CreditOpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.creditService.Borrow(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// CreditPay 信用还款
// POST /api/v1/credit/pay
func (h *Handler) CreditPay(c *gin.Context) {
	var req CreditOpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.creditService.Pay(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// ListCreditHistory 查询信用快照序列
// GET /api/v1/credit/history?user_id=xxx
func (h *Handler) ListCreditHistory(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	history, err := h.historyRepo.ListByUserID(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, history)
}

// ============================================================
// 流水接口
// ============================================================

// ListTransactions 分页查询用户流水
// GET /api/v1/transaction/list?user_id=xxx&page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	transactions, total, err := h.txRepo.ListByUserID(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
		"transactions": transactions,
	})
}

// ============================================================
// 奖励接口
// ============================================================

// RedeemRequest 积分兑换请求
type RedeemRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	Points int   `json:"points" binding:"required,gt=0"`
}

// RedeemReward 积分兑换
// POST /api/v1/reward/redeem
func (h *Handler) RedeemReward(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.rewardService.Redeem(c.Request.Context(), req.UserID, req.Points)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 批处理触发接口（给定时任务或运维调用）
// ============================================================

// RunBilling 触发一轮账单批处理，顺带跑储蓄计息
// POST /api/v1/batch/billing
func (h *Handler) RunBilling(c *gin.Context) {
	billing, err := h.billingService.RunMonthlyBilling(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	dueDate := billing.DueDate
	if dueDate.IsZero() {
		dueDate = time.Now()
	}
	savings, err := h.savingsService.ApplyMonthlyInterest(c.Request.Context(), dueDate)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"billing": billing,
		"savings": savings,
	})
}

// RunAllowance 触发一轮零花钱发放
// POST /api/v1/batch/allowance
func (h *Handler) RunAllowance(c *gin.Context) {
	result, err := h.allowanceService.GiveAllowance(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, result)
}
