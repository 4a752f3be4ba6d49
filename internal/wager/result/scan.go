package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/radieske/vrf-wager-platform/internal/wager"
)

// Tags são os dois prefixos reconhecidos por família de jogo
type Tags struct {
	Outcome string
	Refund  string
}

// OutcomeRecord é o payload do tag de resultado
type OutcomeRecord struct {
	PayoutNet uint64
	Fields    map[string]json.RawMessage
}

// RefundRecord é o payload do tag de refund
type RefundRecord struct {
	Player       string
	BetAmount    uint64
	Compensation uint64
	Fields       map[string]json.RawMessage
}

type Result struct {
	Kind      wager.OutcomeKind
	Tag       string
	Signature string
	Outcome   *OutcomeRecord
	Refund    *RefundRecord
}

// ToOutcome converte para o registro guardado na aposta
func (r Result) ToOutcome() *wager.Outcome {
	o := &wager.Outcome{Kind: r.Kind, Tag: r.Tag, Signature: r.Signature}
	switch {
	case r.Outcome != nil:
		o.PayoutNet = r.Outcome.PayoutNet
		o.Fields = r.Outcome.Fields
	case r.Refund != nil:
		o.BetAmount = r.Refund.BetAmount
		o.Compensation = r.Refund.Compensation
		o.Fields = r.Refund.Fields
	}
	return o
}

// ScanLogs procura a primeira linha com um dos tags seguido de um objeto JSON.
// found=false quando nenhum tag aparece; erro quando o JSON depois do tag é inválido.
func ScanLogs(lines []string, tags Tags) (Result, bool, error) {
	for _, line := range lines {
		tag, payload, ok := matchTag(line, tags)
		if !ok {
			continue
		}
		fields, err := decodeObject(payload)
		if err != nil {
			return Result{}, true, fmt.Errorf("%w: %s: %v", wager.ErrUnparseableResult, tag, err)
		}
		if tag == tags.Refund {
			rec, err := refundRecord(fields)
			if err != nil {
				return Result{}, true, fmt.Errorf("%w: %s: %v", wager.ErrUnparseableResult, tag, err)
			}
			return Result{Kind: wager.KindRefund, Tag: tag, Refund: rec}, true, nil
		}
		payout, err := uintField(fields, "payout_net")
		if err != nil {
			return Result{}, true, fmt.Errorf("%w: %s: %v", wager.ErrUnparseableResult, tag, err)
		}
		return Result{Kind: wager.KindOutcome, Tag: tag, Outcome: &OutcomeRecord{PayoutNet: payout, Fields: fields}}, true, nil
	}
	return Result{}, false, nil
}

// matchTag devolve o tag que aparece primeiro na linha e o texto depois de "TAG:"
func matchTag(line string, tags Tags) (string, string, bool) {
	best, bestIdx := "", -1
	for _, tag := range []string{tags.Outcome, tags.Refund} {
		if tag == "" {
			continue
		}
		if i := strings.Index(line, tag+":"); i >= 0 && (bestIdx < 0 || i < bestIdx) {
			best, bestIdx = tag, i
		}
	}
	if bestIdx < 0 {
		return "", "", false
	}
	return best, line[bestIdx+len(best)+1:], true
}

// decodeObject lê só o primeiro valor JSON; texto depois dele é ignorado
func decodeObject(payload string) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(payload)))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("payload is not an object")
	}
	return fields, nil
}

func refundRecord(fields map[string]json.RawMessage) (*RefundRecord, error) {
	rec := &RefundRecord{Fields: fields}
	if raw, ok := fields["player"]; ok {
		if err := json.Unmarshal(raw, &rec.Player); err != nil {
			return nil, fmt.Errorf("player: %w", err)
		}
	}
	var err error
	if rec.BetAmount, err = uintField(fields, "bet_amount"); err != nil {
		return nil, err
	}
	if rec.Compensation, err = uintField(fields, "compensation"); err != nil {
		return nil, err
	}
	return rec, nil
}

// uintField aceita número ou string decimal; campo ausente ou null vale 0
func uintField(fields map[string]json.RawMessage, key string) (uint64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
