package mongo

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/extraction"
	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/money"
)

const (
	amountFiat   = "Fiat"
	amountCrypto = "Crypto"
)

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("toDecimal128 %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, ledger.Parsef("decimal128 %s: %v", v, err)
	}
	return d, nil
}

func toMoneyDoc(m money.Money) (moneyDoc, error) {
	v, err := toDecimal128(m.Amount)
	if err != nil {
		return moneyDoc{}, err
	}
	return moneyDoc{Amount: v, Currency: string(m.Currency)}, nil
}

func fromMoneyDoc(d moneyDoc) (money.Money, error) {
	c, err := money.ParseCurrency(d.Currency)
	if err != nil {
		return money.Money{}, err
	}
	amt, err := fromDecimal128(d.Amount)
	if err != nil {
		return money.Money{}, err
	}
	return money.New(amt, c), nil
}

func toTransactionDoc(tx *ledger.Transaction) (*transactionDoc, error) {
	doc := &transactionDoc{
		ID:         tx.ID,
		TS:         tx.TS.UTC(),
		PostedTS:   tx.PostedTS,
		Source:     tx.Source,
		Payee:      tx.Payee,
		Memo:       tx.Memo,
		Status:     tx.Status,
		Reconciled: tx.Reconciled,
		TxType:     string(tx.TxType),
	}
	for _, r := range tx.ExternalRefs {
		doc.ExternalRefs = append(doc.ExternalRefs, externalRefDoc{Kind: r.Kind, Value: r.Value})
	}
	legs, err := toLegDocs(tx.Legs)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	doc.Legs = legs
	return doc, nil
}

func toLegDocs(legs []ledger.Leg) ([]legDoc, error) {
	out := make([]legDoc, 0, len(legs))
	for i, l := range legs {
		ld := legDoc{
			AccountID:   l.AccountID,
			Direction:   string(l.Direction),
			CategoryID:  l.CategoryID,
			FeeOfLegIdx: l.FeeOfLegIdx,
			Notes:       l.Notes,
		}
		switch a := l.Amount.(type) {
		case ledger.Fiat:
			v, err := toDecimal128(a.Money.Amount)
			if err != nil {
				return nil, fmt.Errorf("leg %d: %w", i, err)
			}
			ld.Amount = amountDoc{Kind: amountFiat, Currency: string(a.Money.Currency), Amount: &v}
		case ledger.Crypto:
			v, err := toDecimal128(a.Quantity)
			if err != nil {
				return nil, fmt.Errorf("leg %d: %w", i, err)
			}
			ld.Amount = amountDoc{Kind: amountCrypto, Asset: a.Asset, Quantity: &v}
		default:
			return nil, fmt.Errorf("leg %d: unsupported amount %T", i, l.Amount)
		}
		if l.FX != nil {
			rate, err := toDecimal128(l.FX.Rate)
			if err != nil {
				return nil, fmt.Errorf("leg %d fx: %w", i, err)
			}
			ld.FX = &fxDoc{To: string(l.FX.To), Rate: rate}
		}
		out = append(out, ld)
	}
	return out, nil
}

func fromTransactionDoc(doc *transactionDoc) (*ledger.Transaction, error) {
	tx := &ledger.Transaction{
		ID:         doc.ID,
		TS:         doc.TS.UTC(),
		Source:     doc.Source,
		Payee:      doc.Payee,
		Memo:       doc.Memo,
		Status:     doc.Status,
		Reconciled: doc.Reconciled,
	}
	if doc.PostedTS != nil {
		p := doc.PostedTS.UTC()
		tx.PostedTS = &p
	}
	if doc.TxType != "" {
		t, err := ledger.ParseTxType(doc.TxType)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", doc.ID, err)
		}
		tx.TxType = t
	}
	for _, r := range doc.ExternalRefs {
		tx.ExternalRefs = append(tx.ExternalRefs, ledger.ExternalRef{Kind: r.Kind, Value: r.Value})
	}
	legs, err := fromLegDocs(doc.Legs)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", doc.ID, err)
	}
	tx.Legs = legs
	return tx, nil
}

func fromLegDocs(docs []legDoc) ([]ledger.Leg, error) {
	legs := make([]ledger.Leg, 0, len(docs))
	for i, ld := range docs {
		dir, err := ledger.ParseDirection(ld.Direction)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		l := ledger.Leg{
			AccountID:   ld.AccountID,
			Direction:   dir,
			CategoryID:  ld.CategoryID,
			FeeOfLegIdx: ld.FeeOfLegIdx,
			Notes:       ld.Notes,
		}
		switch ld.Amount.Kind {
		case amountFiat:
			if ld.Amount.Amount == nil {
				return nil, fmt.Errorf("leg %d: fiat amount missing", i)
			}
			m, err := fromMoneyDoc(moneyDoc{Amount: *ld.Amount.Amount, Currency: ld.Amount.Currency})
			if err != nil {
				return nil, fmt.Errorf("leg %d: %w", i, err)
			}
			l.Amount = ledger.Fiat{Money: m}
		case amountCrypto:
			if ld.Amount.Quantity == nil {
				return nil, fmt.Errorf("leg %d: crypto quantity missing", i)
			}
			q, err := fromDecimal128(*ld.Amount.Quantity)
			if err != nil {
				return nil, fmt.Errorf("leg %d: %w", i, err)
			}
			l.Amount = ledger.Crypto{Asset: ld.Amount.Asset, Quantity: q}
		default:
			return nil, fmt.Errorf("leg %d: %w", i, &ledger.InvalidEnumError{Field: "amount kind", Value: ld.Amount.Kind})
		}
		if ld.FX != nil {
			to, err := money.ParseCurrency(ld.FX.To)
			if err != nil {
				return nil, fmt.Errorf("leg %d fx: %w", i, err)
			}
			rate, err := fromDecimal128(ld.FX.Rate)
			if err != nil {
				return nil, fmt.Errorf("leg %d fx: %w", i, err)
			}
			l.FX = &money.FXSnapshot{To: to, Rate: rate}
		}
		legs = append(legs, l)
	}
	return legs, nil
}

func toAccountDoc(a *ledger.Account) accountDoc {
	doc := accountDoc{
		ID:              a.ID,
		DisplayName:     a.DisplayName,
		DisplayCurrency: string(a.DisplayCurrency),
		Metadata:        metadataDoc{Kind: a.Metadata.Kind()},
	}
	if w, ok := a.Metadata.(ledger.CryptoWallet); ok && w.Network != nil {
		nd := &networkDoc{Kind: w.Network.Kind()}
		if evm, ok := w.Network.(ledger.EVM); ok {
			nd.ChainName = evm.ChainName
			nd.ChainID = evm.ChainID
		}
		doc.Metadata.Network = nd
	}
	return doc
}

func fromAccountDoc(doc *accountDoc) (*ledger.Account, error) {
	c, err := money.ParseCurrency(doc.DisplayCurrency)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", doc.ID, err)
	}
	a := &ledger.Account{ID: doc.ID, DisplayName: doc.DisplayName, DisplayCurrency: c}
	if doc.Metadata.Kind == (ledger.CryptoWallet{}).Kind() {
		if doc.Metadata.Network == nil {
			return nil, fmt.Errorf("account %s: crypto wallet without network", doc.ID)
		}
		var n ledger.Network
		switch doc.Metadata.Network.Kind {
		case "evm":
			n = ledger.EVM{ChainName: doc.Metadata.Network.ChainName, ChainID: doc.Metadata.Network.ChainID}
		case "solana":
			n = ledger.Solana{}
		case "bitcoin":
			n = ledger.Bitcoin{}
		default:
			return nil, fmt.Errorf("account %s: %w", doc.ID, &ledger.InvalidEnumError{Field: "network", Value: doc.Metadata.Network.Kind})
		}
		a.Metadata = ledger.CryptoWallet{Network: n}
		return a, nil
	}
	md, err := ledger.MetadataFromKind(doc.Metadata.Kind)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", doc.ID, err)
	}
	a.Metadata = md
	return a, nil
}

func toRolloverDoc(r envelope.Rollover) (rolloverDoc, error) {
	doc := rolloverDoc{Kind: r.Name()}
	if c := envelope.RolloverCap(r); c != nil {
		md, err := toMoneyDoc(*c)
		if err != nil {
			return rolloverDoc{}, err
		}
		doc.Cap = &md
	}
	if d, ok := r.(envelope.Decay); ok {
		v, err := toDecimal128(d.KeepRatio)
		if err != nil {
			return rolloverDoc{}, err
		}
		doc.KeepRatio = &v
	}
	return doc, nil
}

func fromRolloverDoc(doc rolloverDoc) (envelope.Rollover, error) {
	var capM *money.Money
	if doc.Cap != nil {
		m, err := fromMoneyDoc(*doc.Cap)
		if err != nil {
			return nil, err
		}
		capM = &m
	}
	switch doc.Kind {
	case envelope.ResetToZero{}.Name():
		return envelope.ResetToZero{}, nil
	case envelope.CarryOver{}.Name():
		return envelope.CarryOver{Cap: capM}, nil
	case envelope.SinkingFund{}.Name():
		return envelope.SinkingFund{Cap: capM}, nil
	case envelope.Decay{}.Name():
		if doc.KeepRatio == nil {
			return nil, fmt.Errorf("decay rollover without keep_ratio")
		}
		k, err := fromDecimal128(*doc.KeepRatio)
		if err != nil {
			return nil, err
		}
		return envelope.Decay{KeepRatio: k, Cap: capM}, nil
	}
	return nil, &ledger.InvalidEnumError{Field: "rollover", Value: doc.Kind}
}

func toEnvelopeDoc(e *envelope.Envelope) (*envelopeDoc, error) {
	bal, err := toMoneyDoc(e.Balance)
	if err != nil {
		return nil, fmt.Errorf("envelope %s balance: %w", e.ID, err)
	}
	ro, err := toRolloverDoc(e.Rollover)
	if err != nil {
		return nil, fmt.Errorf("envelope %s rollover: %w", e.ID, err)
	}
	doc := &envelopeDoc{
		ID:            e.ID,
		Name:          e.Name,
		Kind:          string(e.Kind),
		Status:        string(e.Status),
		Rollover:      ro,
		Balance:       bal,
		LastPeriod:    e.LastPeriod,
		AllowNegative: e.AllowNegative,
		DeficitPolicy: string(e.DeficitPolicy),
	}
	if e.Funding != nil {
		amt, err := toMoneyDoc(e.Funding.Amount)
		if err != nil {
			return nil, fmt.Errorf("envelope %s funding: %w", e.ID, err)
		}
		doc.Funding = &fundingDoc{Amount: amt, Frequency: string(e.Funding.Frequency)}
	}
	if e.PeriodLimit != nil {
		pl, err := toMoneyDoc(*e.PeriodLimit)
		if err != nil {
			return nil, fmt.Errorf("envelope %s period_limit: %w", e.ID, err)
		}
		doc.PeriodLimit = &pl
	}
	if e.MinBalance != nil {
		v, err := toDecimal128(*e.MinBalance)
		if err != nil {
			return nil, fmt.Errorf("envelope %s min_balance: %w", e.ID, err)
		}
		doc.MinBalance = &v
	}
	return doc, nil
}

func fromEnvelopeDoc(doc *envelopeDoc) (*envelope.Envelope, error) {
	bal, err := fromMoneyDoc(doc.Balance)
	if err != nil {
		return nil, fmt.Errorf("envelope %s balance: %w", doc.ID, err)
	}
	ro, err := fromRolloverDoc(doc.Rollover)
	if err != nil {
		return nil, fmt.Errorf("envelope %s: %w", doc.ID, err)
	}
	e := &envelope.Envelope{
		ID:            doc.ID,
		Name:          doc.Name,
		Kind:          envelope.Kind(doc.Kind),
		Status:        envelope.Status(doc.Status),
		Rollover:      ro,
		Balance:       bal,
		LastPeriod:    doc.LastPeriod,
		AllowNegative: doc.AllowNegative,
		DeficitPolicy: envelope.DeficitPolicy(doc.DeficitPolicy),
	}
	if doc.Funding != nil {
		amt, err := fromMoneyDoc(doc.Funding.Amount)
		if err != nil {
			return nil, fmt.Errorf("envelope %s funding: %w", doc.ID, err)
		}
		e.Funding = &envelope.Funding{Amount: amt, Frequency: envelope.Frequency(doc.Funding.Frequency)}
	}
	if doc.PeriodLimit != nil {
		pl, err := fromMoneyDoc(*doc.PeriodLimit)
		if err != nil {
			return nil, fmt.Errorf("envelope %s period_limit: %w", doc.ID, err)
		}
		e.PeriodLimit = &pl
	}
	if doc.MinBalance != nil {
		mb, err := fromDecimal128(*doc.MinBalance)
		if err != nil {
			return nil, fmt.Errorf("envelope %s min_balance: %w", doc.ID, err)
		}
		e.MinBalance = &mb
	}
	return e, nil
}

func toDocumentDoc(d *extraction.Document) documentDoc {
	return documentDoc{
		ID:                    d.ID,
		BlobID:                d.BlobID,
		Namespace:             d.Namespace,
		Kind:                  d.Kind,
		Title:                 d.Title,
		MIMEType:              d.MIMEType,
		LatestExtractionRunID: d.LatestExtractionRunID,
		CreatedAt:             d.CreatedAt.UTC(),
	}
}

func fromDocumentDoc(doc *documentDoc) *extraction.Document {
	return &extraction.Document{
		ID:                    doc.ID,
		BlobID:                doc.BlobID,
		Namespace:             doc.Namespace,
		Kind:                  doc.Kind,
		Title:                 doc.Title,
		MIMEType:              doc.MIMEType,
		LatestExtractionRunID: doc.LatestExtractionRunID,
		CreatedAt:             doc.CreatedAt.UTC(),
	}
}

func toResultDoc(r *extraction.Result) *resultDoc {
	if r == nil {
		return nil
	}
	return &resultDoc{Rows: r.Rows, Quality: r.Quality, Confidence: r.Confidence}
}

func toRunDoc(r *extraction.Run) runDoc {
	return runDoc{
		ID:         r.ID,
		DocID:      r.DocID,
		Kind:       r.Kind,
		Model:      r.Model,
		Prompt:     r.Prompt,
		Metadata:   r.Metadata,
		Status:     string(r.Status),
		Error:      r.Error,
		Result:     toResultDoc(r.Result),
		CreatedAt:  r.CreatedAt.UTC(),
		FinishedAt: r.FinishedAt,
	}
}

func fromRunDoc(doc *runDoc) *extraction.Run {
	r := &extraction.Run{
		ID:         doc.ID,
		DocID:      doc.DocID,
		Kind:       doc.Kind,
		Model:      doc.Model,
		Prompt:     doc.Prompt,
		Metadata:   doc.Metadata,
		Status:     extraction.RunStatus(doc.Status),
		Error:      doc.Error,
		CreatedAt:  doc.CreatedAt.UTC(),
		FinishedAt: doc.FinishedAt,
	}
	if doc.Result != nil {
		r.Result = &extraction.Result{Rows: doc.Result.Rows, Quality: doc.Result.Quality, Confidence: doc.Result.Confidence}
	}
	return r
}
