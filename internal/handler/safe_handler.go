package handler

import (
	"errors"
	"time"

	"safe-core/internal/handler/request"
	"safe-core/internal/handler/response"
	"safe-core/internal/service"
	"safe-core/internal/state"
	"safe-core/internal/wallet"
	"safe-core/internal/worker"
	"safe-core/pkg/errno"
	"safe-core/pkg/safetx"

	"github.com/gin-gonic/gin"
)

// SafeHandler 把 HTTP 请求接到服务层。
// 解析请求不直接调用解析函数，而是穿过后台 Worker 和状态仓库，
// 这样 HTTP 路径观察到的也是 "最后输入生效" 之后的状态。
type SafeHandler struct {
	svc    *service.SafeService
	store  *state.Store
	parser *worker.ParseWorker
	share  *service.ShareStore // 可为 nil (未配置 Redis)
}

func NewSafeHandler(svc *service.SafeService, store *state.Store, parser *worker.ParseWorker, share *service.ShareStore) *SafeHandler {
	return &SafeHandler{svc: svc, store: store, parser: parser, share: share}
}

// Connect 连接钱包
// @Summary 连接钱包
// @Tags Wallet
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/wallet/connect [post]
func (h *SafeHandler) Connect(c *gin.Context) {
	addr, err := h.svc.Connect(c.Request.Context())
	if err != nil {
		h.store.SetConnectedAddress("")
		response.Error(c, mapError(err))
		return
	}

	h.store.SetConnectedAddress(addr)
	response.Success(c, gin.H{"address": addr})
}

// Create 创建多签交易并返回序列化文本
// @Summary 创建多签交易
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.CreateTransactionRequest true "Create Request"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions [post]
func (h *SafeHandler) Create(c *gin.Context) {
	var req request.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	rec, err := h.svc.CreateTransaction(c.Request.Context(), req.To, req.ValueEth, req.Data, req.Nonce)
	if err != nil {
		response.Error(c, mapError(err))
		return
	}

	text, err := safetx.Serialize(rec)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.store.SetCurrentTransaction(rec, "transaction created")
	response.Success(c, gin.H{"text": text, "transaction": rec})
}

// Parse 解析粘贴进来的交易文本。
// 请求提交给后台 Worker，等状态仓库应用到本次序号后答复。
// @Summary 解析交易文本
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.TransactionTextRequest true "Text"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions/parse [post]
func (h *SafeHandler) Parse(c *gin.Context) {
	var req request.TransactionTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	seq := h.parser.Submit(req.Text)

	snap, ok := h.waitForSeq(seq, 2*time.Second)
	if !ok {
		// 在这之后又有新的提交进来，本次请求的结果已经无意义
		response.Success(c, gin.H{"superseded": true})
		return
	}

	if snap.CurrentTx == nil && snap.Status != "" {
		// 解析失败，状态里带着错误文案
		response.Error(c, statusToErrno(snap.Status))
		return
	}

	response.Success(c, gin.H{
		"transaction": snap.CurrentTx, // 空输入时为 null
		"can_sign":    h.svc.CanSign(snap.CurrentTx),
	})
}

// waitForSeq 订阅状态仓库，直到看到 >= seq 的解析序号
func (h *SafeHandler) waitForSeq(seq uint64, timeout time.Duration) (state.Snapshot, bool) {
	if snap := h.store.Snapshot(); snap.ParseSeq >= seq {
		return snap, snap.ParseSeq == seq
	}

	ch, cancel := h.store.Subscribe()
	defer cancel()

	// 订阅建立前的一瞬间结果可能已经应用并广播完了，补查一次
	if snap := h.store.Snapshot(); snap.ParseSeq >= seq {
		return snap, snap.ParseSeq == seq
	}

	deadline := time.After(timeout)
	for {
		select {
		case snap := <-ch:
			if snap.ParseSeq == seq {
				return snap, true
			}
			if snap.ParseSeq > seq {
				return snap, false // superseded
			}
		case <-deadline:
			return h.store.Snapshot(), false
		}
	}
}

// Sign 给交易文本追加当前账户的签名，返回新文本
// @Summary 追加签名
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.TransactionTextRequest true "Text"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions/sign [post]
func (h *SafeHandler) Sign(c *gin.Context) {
	rec, ok := h.parseBody(c)
	if !ok {
		return
	}

	next, err := h.svc.SignTransaction(c.Request.Context(), rec)
	if err != nil {
		response.Error(c, mapErrorOr(err, errno.ErrSigning))
		return
	}

	text, err := safetx.Serialize(next)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.store.SetCurrentTransaction(next, "signature added")
	response.Success(c, gin.H{"text": text, "signatures": len(next.Signatures)})
}

// Execute 提交执行
// @Summary 执行多签交易
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.TransactionTextRequest true "Text"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions/execute [post]
func (h *SafeHandler) Execute(c *gin.Context) {
	rec, ok := h.parseBody(c)
	if !ok {
		return
	}

	txHash, err := h.svc.ExecuteTransaction(c.Request.Context(), rec)
	if err != nil {
		response.Error(c, mapErrorOr(err, errno.ErrExecution))
		return
	}

	h.store.SetCurrentTransaction(rec, "execution submitted: "+txHash)
	response.Success(c, gin.H{"tx_hash": txHash})
}

// Deploy 部署新 Safe
// @Summary 部署 Safe
// @Tags Safe
// @Accept json
// @Produce json
// @Param request body request.DeploySafeRequest true "Deploy Request"
// @Success 200 {object} response.Response
// @Router /api/v1/safe/deploy [post]
func (h *SafeHandler) Deploy(c *gin.Context) {
	var req request.DeploySafeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	addr, txHash, err := h.svc.DeploySafe(c.Request.Context(), req.Owners, req.Threshold)
	if err != nil {
		response.Error(c, mapErrorOr(err, errno.ErrExecution))
		return
	}

	response.Success(c, gin.H{"safe_address": addr, "tx_hash": txHash})
}

// Share 保存交易文本，换一个分享码
// @Summary 生成分享码
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.ShareRequest true "Share Request"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions/share [post]
func (h *SafeHandler) Share(c *gin.Context) {
	if h.share == nil {
		response.Error(c, errno.InternalServerError)
		return
	}

	var req request.ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	// 只中转合法文本
	if _, err := safetx.Parse(req.Text); err != nil {
		response.Error(c, mapError(err))
		return
	}

	code, err := h.share.Save(c.Request.Context(), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"code": code})
}

// Fetch 用分享码取回交易文本
// @Summary 取回分享的交易
// @Tags Transaction
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/transactions/share/{code} [get]
func (h *SafeHandler) Fetch(c *gin.Context) {
	if h.share == nil {
		response.Error(c, errno.InternalServerError)
		return
	}

	text, err := h.share.Load(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"text": text})
}

// History 最近的审计记录
// @Summary 交易历史
// @Tags Transaction
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/transactions [get]
func (h *SafeHandler) History(c *gin.Context) {
	rows, err := h.svc.History(50)
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	response.Success(c, gin.H{"transactions": rows})
}

// State 当前界面状态快照
// @Summary 状态快照
// @Tags Wallet
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/state [get]
func (h *SafeHandler) State(c *gin.Context) {
	snap := h.store.Snapshot()
	resp := gin.H{
		"connected_address": snap.ConnectedAddress,
		"safe_address":      snap.SafeAddress,
		"transaction":       snap.CurrentTx,
		"status":            snap.Status,
		"can_sign":          h.svc.CanSign(snap.CurrentTx),
	}
	// 阈值只是展示信息，链上读不到时不拖垮整个快照
	if threshold, err := h.svc.Threshold(c.Request.Context()); err == nil {
		resp["threshold"] = threshold
	}
	response.Success(c, resp)
}

// parseBody 解析请求里携带的交易文本，失败时已写好应答
func (h *SafeHandler) parseBody(c *gin.Context) (*safetx.Transaction, bool) {
	var req request.TransactionTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return nil, false
	}

	rec, err := safetx.Parse(req.Text)
	if err != nil {
		response.Error(c, mapError(err))
		return nil, false
	}
	if rec == nil {
		response.Error(c, errno.ErrSchema)
		return nil, false
	}
	return rec, true
}

// mapError 把下层错误翻译成带错误码的应答
func mapError(err error) error {
	var parseErr *safetx.ParseError
	switch {
	case errors.As(err, &parseErr):
		return errno.ErrParse
	case errors.Is(err, safetx.ErrInvalidFormat):
		return errno.ErrSchema
	case errors.Is(err, wallet.ErrNoSigner):
		return errno.ErrNoAccount
	case errors.Is(err, wallet.ErrNoAccounts):
		return errno.ErrWallet
	default:
		return err
	}
}

// mapErrorOr 同 mapError，但没对上已知错误时退回 fallback 错误码
func mapErrorOr(err error, fallback errno.Errno) error {
	if mapped := mapError(err); mapped != err {
		return mapped
	}
	var coded errno.Errno
	if errors.As(err, &coded) {
		return coded
	}
	return fallback
}

// statusToErrno 解析失败的状态文案还原成错误码
func statusToErrno(status string) error {
	if status == safetx.ErrInvalidFormat.Error() {
		return errno.ErrSchema
	}
	return errno.ErrParse
}
