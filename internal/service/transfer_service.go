package service

import (
	"context"
	"fmt"
	"log"

	"homebank/internal/audit"
	"homebank/internal/config"
	"homebank/internal/model"
	"homebank/internal/repository"
	"homebank/pkg/idgen"
	"homebank/pkg/money"

	"gorm.io/gorm"
)

// ============================================================================
// 转账端点
// ============================================================================

const (
	EndpointKindAccount = "account"
	EndpointKindBank    = "bank"
)

// Endpoint 转账端点：具体账户，或"银行"本身（机构端，只有家长能用）。
// 显式标签类型，不用空 ID 之类的约定表达银行端。
type Endpoint struct {
	Kind      string `json:"kind"`
	AccountID int64  `json:"account_id"`
}

func AccountEndpoint(id int64) Endpoint {
	return Endpoint{Kind: EndpointKindAccount, AccountID: id}
}

func BankEndpoint() Endpoint {
	return Endpoint{Kind: EndpointKindBank}
}

func (e Endpoint) IsBank() bool {
	return e.Kind == EndpointKindBank
}

// ============================================================================
// 转账引擎
// ============================================================================

// SavingsWithdrawPenaltyRate 储蓄取款罚金比例
const SavingsWithdrawPenaltyRate = 0.10

// MinSavingsTransferAmount 储蓄转出最低金额
const MinSavingsTransferAmount = 1.00

type TransferService struct {
	db          *gorm.DB
	cfg         *config.CreditConfig
	userRepo    *repository.UserRepository
	accountRepo *repository.AccountRepository
	txRepo      *repository.TransactionRepository
	auditLog    *audit.Logger
}

func NewTransferService(db *gorm.DB, cfg *config.CreditConfig, auditLog *audit.Logger) *TransferService {
	return &TransferService{
		db:          db,
		cfg:         cfg,
		userRepo:    repository.NewUserRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		txRepo:      repository.NewTransactionRepository(db),
		auditLog:    auditLog,
	}
}

type TransferRequest struct {
	ActorUserID int64
	From        Endpoint
	To          Endpoint
	Amount      float64
	Description string
}

type TransferResult struct {
	TransactionNo    string   `json:"transaction_no"`
	Amount           float64  `json:"amount"`
	Penalty          float64  `json:"penalty"`
	PointsAwarded    int      `json:"points_awarded"`
	FromBalanceAfter *float64 `json:"from_balance_after"`
	ToBalanceAfter   *float64 `json:"to_balance_after"`
}

// validateTransfer 转账前置校验，第一个失败的检查生效，之前的检查都无副作用。
// from / to 为 nil 表示银行端。顺序不可调整：
// 双银行 → 银行权限 → 同账户 → 归属 → 金额 → 信用账户排除 → 储蓄规则
func validateTransfer(actor *model.User, from, to *model.Account, amount float64) error {
	if from == nil && to == nil {
		return ErrBothBank
	}
	if (from == nil || to == nil) && actor.Role != model.RoleParent {
		return ErrBankRequiresParent
	}
	if from != nil && to != nil && from.ID == to.ID {
		return ErrSameAccount
	}
	if from != nil && from.UserID != actor.ID && actor.Role != model.RoleParent {
		return ErrNotAccountOwner
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if from != nil && from.IsCredit() {
		return ErrCreditEndpoint
	}
	if to != nil && to.IsCredit() {
		return ErrCreditEndpoint
	}

	// 储蓄只能转给本人消费账户，最低 $1，并预检含罚金的余额
	if from != nil && from.Type == model.AccountTypeSavings {
		if to == nil || to.UserID != from.UserID || to.Type != model.AccountTypeSpending {
			return ErrSavingsDestination
		}
		if amount < MinSavingsTransferAmount {
			return ErrMinSavingsTransfer
		}
		penalty := money.Round2(amount * SavingsWithdrawPenaltyRate)
		total := money.Round2(amount + penalty)
		if from.Balance < total {
			return &InsufficientFundsError{
				Shortfall: money.Round2(total - from.Balance),
				Penalty:   penalty,
			}
		}
		return nil
	}

	if from != nil && from.Balance < amount {
		return &InsufficientFundsError{Shortfall: money.Round2(amount - from.Balance)}
	}
	return nil
}

// transferKind 按端点形态决定流水类型
func transferKind(from, to *model.Account) string {
	switch {
	case from == nil:
		return model.TxKindBankDeposit
	case to == nil:
		return model.TxKindBankWithdrawal
	default:
		return model.TxKindTransfer
	}
}

// Transfer 执行一笔转账
//
// 【关键点】余额变更和流水落库必须同时成功或同时失败，全部包在一个
// 数据库事务里；涉及的账户行按 ID 升序加行锁，避免并发互相覆盖余额。
func (s *TransferService) Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	actor, err := s.userRepo.GetByID(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}

	amount := money.Round2(req.Amount)

	// 事务外先做一轮校验，明显非法的请求不进事务
	var from, to *model.Account
	if !req.From.IsBank() {
		if from, err = s.accountRepo.GetByID(ctx, req.From.AccountID); err != nil {
			return nil, err
		}
	}
	if !req.To.IsBank() {
		if to, err = s.accountRepo.GetByID(ctx, req.To.AccountID); err != nil {
			return nil, err
		}
	}
	if err := validateTransfer(actor, from, to, amount); err != nil {
		return nil, err
	}

	kind := transferKind(from, to)
	description := req.Description
	if description == "" {
		description = model.DefaultDescription(kind)
	}

	result := &TransferResult{Amount: amount}
	var auditEvents []userEvent

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 锁账户行，两个账户时按 ID 升序加锁防死锁
		from, to, err = s.lockEndpoints(ctx, tx, req)
		if err != nil {
			return err
		}
		// 锁内重校验：余额可能在拿锁前被并发事务改过
		if err := validateTransfer(actor, from, to, amount); err != nil {
			return err
		}

		auditEvents = auditEvents[:0]

		// 储蓄取款罚金先扣、先记账，罚金流水的余额快照是主流水的新基线
		var penalty float64
		if from != nil && from.Type == model.AccountTypeSavings {
			penalty = money.Round2(amount * SavingsWithdrawPenaltyRate)
			if penalty >= 0.01 {
				preBalance := from.Balance
				from.Balance = money.Round2(from.Balance - penalty)
				if err := s.accountRepo.SaveBalance(ctx, tx, from); err != nil {
					return fmt.Errorf("扣罚金失败: %w", err)
				}
				penaltyTx := &model.Transaction{
					TransactionNo:    idgen.GenerateTransactionNo(),
					FromAccountID:    &from.ID,
					FromUserID:       &from.UserID,
					Amount:           penalty,
					Kind:             model.TxKindSavingsPenalty,
					Description:      model.DefaultDescription(model.TxKindSavingsPenalty),
					FromBalanceAfter: f64ptr(from.Balance),
				}
				if err := s.txRepo.Create(ctx, tx, penaltyTx); err != nil {
					return fmt.Errorf("记录罚金流水失败: %w", err)
				}
				auditEvents = append(auditEvents, userEvent{
					username: actor.Username,
					event: audit.Event{
						Action: audit.ActionPenalty,
						Route:  fmt.Sprintf("%s → Bank", from.Type),
						Amount: penalty,
						Change: audit.Change(preBalance, from.Balance),
						Reason: model.DefaultDescription(model.TxKindSavingsPenalty),
					},
				})
			}
			result.Penalty = penalty
		}

		ogFromBalance := 0.0
		ogToBalance := 0.0

		// 借记转出方（银行端不扣）
		if from != nil {
			ogFromBalance = from.Balance
			from.Balance = money.Round2(from.Balance - amount)
			if err := s.accountRepo.SaveBalance(ctx, tx, from); err != nil {
				return fmt.Errorf("扣款失败: %w", err)
			}
		}

		// 贷记转入方（银行端不入），目标侧没有上限检查
		if to != nil {
			ogToBalance = to.Balance
			to.Balance = money.Round2(to.Balance + amount)
			if err := s.accountRepo.SaveBalance(ctx, tx, to); err != nil {
				return fmt.Errorf("入账失败: %w", err)
			}
		}

		trans := &model.Transaction{
			TransactionNo: idgen.GenerateTransferNo(),
			Amount:        amount,
			Kind:          kind,
			Description:   description,
		}
		if from != nil {
			trans.FromAccountID = &from.ID
			trans.FromUserID = &from.UserID
			trans.FromBalanceAfter = f64ptr(from.Balance)
		} else {
			trans.FromUserID = &actor.ID
		}
		if to != nil {
			trans.ToAccountID = &to.ID
			trans.ToUserID = &to.UserID
			trans.ToBalanceAfter = f64ptr(to.Balance)
		}
		if err := s.txRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		result.TransactionNo = trans.TransactionNo
		result.FromBalanceAfter = trans.FromBalanceAfter
		result.ToBalanceAfter = trans.ToBalanceAfter

		// 奖励钩子：转入本人储蓄账户时按金额向下取整发积分
		if to != nil && to.Type == model.AccountTypeSavings && to.UserID == actor.ID {
			points := int(amount * s.cfg.SavingsRewardRate)
			if points > 0 {
				if err := s.userRepo.AddRewardPoints(ctx, tx, actor.ID, points); err != nil {
					return fmt.Errorf("发放储蓄奖励积分失败: %w", err)
				}
				result.PointsAwarded = points
			}
		}

		events, err := s.buildTransferAudit(ctx, actor, from, to, amount, ogFromBalance, ogToBalance, description)
		if err != nil {
			return err
		}
		auditEvents = append(auditEvents, events...)
		return nil
	})

	if err != nil {
		return nil, err
	}

	// 审计日志在事务提交后落盘，写失败不回滚资金变动
	for _, ev := range auditEvents {
		if err := s.auditLog.LogUser(ev.username, ev.event); err != nil {
			log.Printf("[TransferService] 审计日志写入失败: user=%s, err=%v", ev.username, err)
		}
	}

	log.Printf("转账成功: txNo=%s, actor=%d, amount=%.2f", result.TransactionNo, actor.ID, amount)
	return result, nil
}

// lockEndpoints 按 ID 升序对涉及的账户行加锁
func (s *TransferService) lockEndpoints(ctx context.Context, tx *gorm.DB, req *TransferRequest) (from, to *model.Account, err error) {
	ids := make([]int64, 0, 2)
	if !req.From.IsBank() {
		ids = append(ids, req.From.AccountID)
	}
	if !req.To.IsBank() {
		ids = append(ids, req.To.AccountID)
	}
	if len(ids) == 2 && ids[0] > ids[1] {
		ids[0], ids[1] = ids[1], ids[0]
	}

	locked := make(map[int64]*model.Account, 2)
	for _, id := range ids {
		acc, err := s.accountRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return nil, nil, err
		}
		locked[id] = acc
	}

	if !req.From.IsBank() {
		from = locked[req.From.AccountID]
	}
	if !req.To.IsBank() {
		to = locked[req.To.AccountID]
	}
	return from, to, nil
}

type userEvent struct {
	username string
	event    audit.Event
}

// buildTransferAudit 按端点形态生成转出方/转入方的审计事件
func (s *TransferService) buildTransferAudit(ctx context.Context, actor *model.User, from, to *model.Account, amount, ogFromBalance, ogToBalance float64, desc string) ([]userEvent, error) {
	var events []userEvent

	switch {
	case from == nil:
		toUser, err := s.userRepo.GetByID(ctx, to.UserID)
		if err != nil {
			return nil, err
		}
		events = append(events,
			userEvent{actor.Username, audit.Event{
				Action: audit.ActionTransfer,
				Route:  fmt.Sprintf("Bank → %s", toUser.Username),
				Amount: amount,
				Change: audit.Change(ogToBalance, to.Balance),
				Reason: desc,
			}},
			userEvent{toUser.Username, audit.Event{
				Action: audit.ActionReceived,
				Route:  fmt.Sprintf("Bank → %s", to.Type),
				Amount: amount,
				Change: audit.Change(ogToBalance, to.Balance),
				Reason: desc,
			}})

	case to == nil:
		fromUser, err := s.userRepo.GetByID(ctx, from.UserID)
		if err != nil {
			return nil, err
		}
		events = append(events, userEvent{fromUser.Username, audit.Event{
			Action: audit.ActionTransfer,
			Route:  fmt.Sprintf("%s → Bank", from.Type),
			Amount: amount,
			Change: audit.Change(ogFromBalance, from.Balance),
			Reason: desc,
		}})

	case from.UserID == to.UserID:
		owner, err := s.userRepo.GetByID(ctx, from.UserID)
		if err != nil {
			return nil, err
		}
		events = append(events, userEvent{owner.Username, audit.Event{
			Action: audit.ActionTransfer,
			Route:  fmt.Sprintf("%s → %s", from.Type, to.Type),
			Amount: amount,
			Change: audit.DualChange(ogFromBalance, from.Balance, ogToBalance, to.Balance),
			Reason: desc,
		}})

	default:
		fromUser, err := s.userRepo.GetByID(ctx, from.UserID)
		if err != nil {
			return nil, err
		}
		toUser, err := s.userRepo.GetByID(ctx, to.UserID)
		if err != nil {
			return nil, err
		}
		events = append(events,
			userEvent{fromUser.Username, audit.Event{
				Action: audit.ActionTransfer,
				Route:  fmt.Sprintf("%s → %s", from.Type, toUser.Username),
				Amount: amount,
				Change: audit.Change(ogFromBalance, from.Balance),
				Reason: desc,
			}},
			userEvent{toUser.Username, audit.Event{
				Action: audit.ActionReceived,
				Route:  fmt.Sprintf("%s → %s", fromUser.Username, to.Type),
				Amount: amount,
				Change: audit.Change(ogToBalance, to.Balance),
				Reason: desc,
			}})
	}

	return events, nil
}

func f64ptr(v float64) *float64 {
	return &v
}
