package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"luckystake/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var daysPerYear = decimal.NewFromInt(365)

// maxAccrualDays bounds a manual accrual request
const maxAccrualDays = 366

type challengeRequest struct {
	PublicKey string `json:"publicKey"`
}

func (s *Server) challenge(c *gin.Context) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "publicKey required")
		return
	}

	ch, err := s.auth.Challenge(req.PublicKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"nonce":        ch.Nonce,
		"message":      ch.Message,
		"expiresAt":    ch.ExpiresAt,
		"challengeXDR": nil,
	})
}

type verifyRequest struct {
	PublicKey string `json:"publicKey"`
	Nonce     string `json:"nonce"`
	SignedXDR string `json:"signedXDR"`
}

func (s *Server) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "publicKey and nonce required")
		return
	}

	session, err := s.auth.Verify(c.Request.Context(), req.PublicKey, req.Nonce, req.SignedXDR)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (s *Server) me(c *gin.Context) {
	profile, err := s.services.Accounts.GetProfile(c.Request.Context(), accountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}

func (s *Server) listPools(c *gin.Context) {
	pools, err := s.services.Pools.ListPools(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pools": pools})
}

func (s *Server) getPool(c *gin.Context) {
	pool, err := s.services.Pools.GetPool(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pool)
}

func (s *Server) myPosition(c *gin.Context) {
	position, err := s.services.Pools.AccountPosition(c.Request.Context(), accountID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, position)
}

type depositRequest struct {
	PoolID string          `json:"poolType"`
	Amount decimal.Decimal `json:"amount"`
	TxHash string          `json:"txHash"`
}

func (s *Server) createDeposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "poolType, amount, and txHash are required")
		return
	}

	deposit, err := s.services.Ledger.Deposit(c.Request.Context(), accountID(c), req.PoolID, req.Amount, req.TxHash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Deposit recorded successfully",
		"deposit": deposit,
	})
}

func (s *Server) myDeposits(c *gin.Context) {
	history, err := s.services.Accounts.Deposits(c.Request.Context(), accountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) withdraw(c *gin.Context) {
	deposit, err := s.services.Ledger.Withdraw(c.Request.Context(), c.Param("id"), accountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Withdrawal recorded",
		"deposit": deposit,
	})
}

func (s *Server) recentPrizes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	prizes, err := s.services.Pools.RecentPrizes(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prizes": prizes, "count": len(prizes)})
}

func (s *Server) myPrizes(c *gin.Context) {
	history, err := s.services.Accounts.Prizes(c.Request.Context(), accountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"prizes":   history.Prizes,
		"totalWon": history.TotalWon,
		"count":    len(history.Prizes),
	})
}

type drawRequest struct {
	PoolID string `json:"poolType"`
}

func (s *Server) draw(c *gin.Context) {
	var req drawRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PoolID) == "" {
		badRequest(c, "poolType required")
		return
	}

	prize, err := s.services.Draws.Draw(c.Request.Context(), req.PoolID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Draw complete", "prize": prize})
}

type accrueRequest struct {
	Days *decimal.Decimal `json:"days"`
}

func (s *Server) accrueYield(c *gin.Context) {
	var req accrueRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "days must be a number")
		return
	}

	days := decimal.NewFromInt(1)
	if req.Days != nil {
		days = *req.Days
	}
	if !days.IsPositive() || days.GreaterThan(decimal.NewFromInt(maxAccrualDays)) {
		badRequest(c, "days must be between 0 and 366")
		return
	}

	results, err := s.services.Yield.AccrueYield(c.Request.Context(), days.Div(daysPerYear))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Yield accrued", "pools": results})
}

type settleRequest struct {
	TxHash string `json:"txHash"`
}

func (s *Server) settlePrize(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "txHash required")
		return
	}

	prize, err := s.services.Pools.SettlePrize(c.Request.Context(), c.Param("id"), req.TxHash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Prize settled", "prize": prize})
}

func (s *Server) updateSettings(c *gin.Context) {
	var settings models.AccountSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		badRequest(c, "invalid settings")
		return
	}

	account, err := s.services.Accounts.UpdateSettings(c.Request.Context(), accountID(c), settings)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Settings updated", "user": account})
}

func (s *Server) leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := s.services.Accounts.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
