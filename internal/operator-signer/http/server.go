package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/operator-signer/program"
	"github.com/radieske/vrf-wager-platform/internal/wager/derive"
	"github.com/radieske/vrf-wager-platform/pkg/contracts/operator"
)

// Operator são as três instruções assinadas pelo operador
type Operator interface {
	RequestRandomness(ctx context.Context, a program.RequestAccounts) (program.Receipt, error)
	Resolve(ctx context.Context, a program.SettleAccounts) (program.Receipt, error)
	Refund(ctx context.Context, a program.SettleAccounts) (program.Receipt, error)
}

// Server expõe o operator signer de um jogo
type Server struct {
	log     *zap.Logger
	op      Operator
	agent   ledger.PublicKey
	program ledger.PublicKey
}

func NewServer(log *zap.Logger, op Operator, agent, programID ledger.PublicKey) *Server {
	return &Server{log: log, op: op, agent: agent, program: programID}
}

// Router retorna o roteador HTTP com as rotas do agente
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	r.Post(operator.PathRequest, s.request) // request_vrf_agent
	r.Post(operator.PathResolve, s.resolve) // resolve_bet
	r.Post(operator.PathRefund, s.refund)   // refund_bet_from_vault
	r.Get(operator.PathHealth, s.health)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func reject(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, operator.Response{OK: false, Error: msg})
}

// field é um campo obrigatório do corpo, na ordem em que é validado
type field struct {
	name  string
	value string
	dst   *ledger.PublicKey
}

// parseFields valida presença e depois formato; devolve a mensagem de erro
func parseFields(fields []field) string {
	for _, f := range fields {
		if f.value == "" {
			return "missing " + f.name
		}
	}
	for _, f := range fields {
		if f.dst == nil {
			continue
		}
		pk, err := ledger.ParsePublicKey(f.value)
		if err != nil {
			return "invalid " + f.name + ": " + err.Error()
		}
		*f.dst = pk
	}
	return ""
}

func (s *Server) request(w http.ResponseWriter, r *http.Request) {
	var req operator.RequestRandomnessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reject(w, http.StatusBadRequest, "bad json")
		return
	}
	var a program.RequestAccounts
	if msg := parseFields([]field{
		{"seedPubkey", req.SeedPubkey, nil},
		{"randomPda", req.RandomPda, &a.Randomness},
		{"networkState", req.NetworkState, &a.NetworkState},
		{"vrfTreasury", req.VRFTreasury, &a.VRFTreasury},
		{"vrfProgram", req.VRFProgram, &a.VRFProgram},
		{"configPda", req.ConfigPda, &a.Config},
	}); msg != "" {
		reject(w, http.StatusBadRequest, msg)
		return
	}
	seed, err := derive.ParseSeed(req.SeedPubkey)
	if err != nil {
		reject(w, http.StatusBadRequest, "invalid seedPubkey format (expected base58 pubkey of a keypair)")
		return
	}
	a.Seed = seed

	s.log.Info("request_vrf_agent",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("seed", seed.String()),
		zap.String("randomness", a.Randomness.String()))
	rec, err := s.op.RequestRandomness(r.Context(), a)
	s.reply(w, r, "request_vrf_agent", rec, err)
}

func (s *Server) settleAccounts(w http.ResponseWriter, fields []field) bool {
	if msg := parseFields(fields); msg != "" {
		reject(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	var req operator.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reject(w, http.StatusBadRequest, "bad json")
		return
	}
	var a program.SettleAccounts
	if !s.settleAccounts(w, []field{
		{"playerPubkey", req.PlayerPubkey, &a.Player},
		{"randomPda", req.RandomPda, &a.Randomness},
		{"betPda", req.BetPda, &a.Wager},
		{"vaultPda", req.VaultPda, &a.Vault},
		{"treasuryPda", req.TreasuryPda, &a.Treasury},
		{"configPda", req.ConfigPda, &a.Config},
	}) {
		return
	}

	s.log.Info("resolve_bet",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("bet", a.Wager.String()),
		zap.String("player", a.Player.String()))
	rec, err := s.op.Resolve(r.Context(), a)
	s.reply(w, r, "resolve_bet", rec, err)
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	var req operator.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reject(w, http.StatusBadRequest, "bad json")
		return
	}
	var a program.SettleAccounts
	if !s.settleAccounts(w, []field{
		{"playerPubkey", req.PlayerPubkey, &a.Player},
		{"randomPda", req.RandomPda, &a.Randomness},
		{"betPda", req.BetPda, &a.Wager},
		{"vaultPda", req.VaultPda, &a.Vault},
		{"configPda", req.ConfigPda, &a.Config},
	}) {
		return
	}

	s.log.Info("refund_bet_from_vault",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("bet", a.Wager.String()),
		zap.String("player", a.Player.String()))
	rec, err := s.op.Refund(r.Context(), a)
	s.reply(w, r, "refund_bet_from_vault", rec, err)
}

// reply responde 200 com ok=false em falhas de execução, como o cliente espera
func (s *Server) reply(w http.ResponseWriter, r *http.Request, method string, rec program.Receipt, err error) {
	if err != nil {
		s.log.Error(method+" failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("signature", rec.Signature),
			zap.Error(err))
		resp := operator.Response{OK: false, Error: err.Error()}
		var txErr *program.TxError
		if errors.As(err, &txErr) {
			resp.TxSig = txErr.Signature
			resp.Logs = txErr.Logs
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	s.log.Info(method+" confirmed", zap.String("signature", rec.Signature))
	writeJSON(w, http.StatusOK, operator.Response{OK: true, TxSig: rec.Signature, Logs: rec.Logs})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, operator.HealthResponse{OK: true, Agent: s.agent.String(), Program: s.program.String()})
}
