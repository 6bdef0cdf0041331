// Package vault keeps the escrow ledger of one instrument: per account
// and per asset, the balance available for new orders and the balance
// reserved against open ones.
//
// Custody (the sum of available and reserved over all accounts) only
// changes through Deposit and Withdraw. Reserve, Release, Settle and
// SettleFill move value between buckets and accounts and leave custody
// untouched.
package vault

import (
	"slices"

	"clob/domain/errs"

	"github.com/pkg/errors"
)

// Asset selects the base or quote side of an instrument.
type Asset uint8

const (
	Base Asset = iota
	Quote
)

func (a Asset) Valid() bool { return a == Base || a == Quote }

func (a Asset) String() string {
	if a == Base {
		return "base"
	}
	return "quote"
}

// Balance of one account in one asset.
type Balance struct {
	Available uint64
	Reserved  uint64
}

// Total is available plus reserved.
func (b Balance) Total() uint64 {
	return b.Available + b.Reserved
}

// Ledger is the escrow ledger of one instrument.
type Ledger struct {
	accounts map[uint64]*[2]Balance
	custody  [2]uint64
}

func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[uint64]*[2]Balance)}
}

func (l *Ledger) account(id uint64) *[2]Balance {
	a, ok := l.accounts[id]
	if !ok {
		a = &[2]Balance{}
		l.accounts[id] = a
	}
	return a
}

// Balance returns the balance of account in asset.
func (l *Ledger) Balance(account uint64, asset Asset) Balance {
	if a, ok := l.accounts[account]; ok {
		return a[asset]
	}
	return Balance{}
}

// Custody is the total amount of asset held for all accounts.
func (l *Ledger) Custody(asset Asset) uint64 {
	return l.custody[asset]
}

// Total recomputes custody of asset from the account balances.
func (l *Ledger) Total(asset Asset) uint64 {
	var sum uint64
	for _, a := range l.accounts {
		sum += a[asset].Total()
	}
	return sum
}

// Accounts returns the account ids in ascending order.
func (l *Ledger) Accounts() []uint64 {
	ids := make([]uint64, 0, len(l.accounts))
	for id := range l.accounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Restore sets the balances of an account while decoding a record.
func (l *Ledger) Restore(account uint64, base, quote Balance) error {
	if _, ok := l.accounts[account]; ok {
		return errors.Wrapf(errs.ErrCorruptRecord, "account %d listed twice", account)
	}
	for i, b := range []Balance{base, quote} {
		total, err := Add(b.Available, b.Reserved)
		if err != nil {
			return err
		}
		if l.custody[i], err = Add(l.custody[i], total); err != nil {
			return err
		}
	}
	l.accounts[account] = &[2]Balance{base, quote}
	return nil
}

// ---- funding ----

// Deposit credits amount to the available balance of account.
func (l *Ledger) Deposit(account uint64, asset Asset, amount uint64) error {
	custody, err := Add(l.custody[asset], amount)
	if err != nil {
		return err
	}
	a := l.account(account)
	avail, err := Add(a[asset].Available, amount)
	if err != nil {
		return err
	}
	a[asset].Available = avail
	l.custody[asset] = custody
	return nil
}

// Withdraw debits amount from the available balance of account.
func (l *Ledger) Withdraw(account uint64, asset Asset, amount uint64) error {
	if avail := l.Balance(account, asset).Available; avail < amount {
		return errors.Wrapf(errs.ErrInsufficientBalance,
			"account %d %s available %d, requested %d", account, asset, avail, amount)
	}
	a := l.account(account)
	a[asset].Available -= amount
	l.custody[asset] -= amount
	return nil
}

// ---- escrow ----

// Reserve moves amount from available to reserved.
func (l *Ledger) Reserve(account uint64, asset Asset, amount uint64) error {
	if avail := l.Balance(account, asset).Available; avail < amount {
		return errors.Wrapf(errs.ErrInsufficientBalance,
			"account %d %s available %d, reserve %d", account, asset, avail, amount)
	}
	a := l.account(account)
	reserved, err := Add(a[asset].Reserved, amount)
	if err != nil {
		return err
	}
	a[asset].Available -= amount
	a[asset].Reserved = reserved
	return nil
}

// Release moves amount from reserved back to available.
func (l *Ledger) Release(account uint64, asset Asset, amount uint64) error {
	reserved, err := Sub(l.Balance(account, asset).Reserved, amount)
	if err != nil {
		return errors.Wrapf(err, "release account %d %s", account, asset)
	}
	a := l.account(account)
	avail, err := Add(a[asset].Available, amount)
	if err != nil {
		return err
	}
	a[asset].Reserved = reserved
	a[asset].Available = avail
	return nil
}

// Settle moves amount from the reserved balance of payer to the
// available balance of payee.
func (l *Ledger) Settle(payer, payee uint64, asset Asset, amount uint64) error {
	return l.apply([]transfer{{from: payer, to: payee, asset: asset, amount: amount}})
}

// SettleFill applies one fill as a single unit: size base from seller to
// buyer and price*size quote from buyer to seller. buyerLimit is the
// price the buyer reserved at; when it is above the fill price the
// difference on size is released back to the buyer. Either every
// movement applies or none does.
func (l *Ledger) SettleFill(buyer, seller, price, size, buyerLimit uint64) error {
	notional, err := Notional(price, size)
	if err != nil {
		return err
	}
	if buyerLimit < price {
		return errors.Wrapf(errs.ErrArithmeticOverflow, "buyer limit %d below fill price %d", buyerLimit, price)
	}
	improvement, err := Notional(buyerLimit-price, size)
	if err != nil {
		return err
	}
	return l.apply([]transfer{
		{from: seller, to: buyer, asset: Base, amount: size},
		{from: buyer, to: seller, asset: Quote, amount: notional},
		{from: buyer, to: buyer, asset: Quote, amount: improvement},
	})
}

type transfer struct {
	from, to uint64
	asset    Asset
	amount   uint64
}

// apply stages every transfer on copies of the touched balances and
// writes them back only when all succeed.
func (l *Ledger) apply(ts []transfer) error {
	staged := map[uint64]*[2]Balance{}
	get := func(id uint64) *[2]Balance {
		if b, ok := staged[id]; ok {
			return b
		}
		var b [2]Balance
		if cur, ok := l.accounts[id]; ok {
			b = *cur
		}
		staged[id] = &b
		return &b
	}

	for _, t := range ts {
		if t.amount == 0 {
			continue
		}
		from := get(t.from)
		reserved, err := Sub(from[t.asset].Reserved, t.amount)
		if err != nil {
			return errors.Wrapf(err, "account %d %s reserved", t.from, t.asset)
		}
		from[t.asset].Reserved = reserved

		to := get(t.to)
		avail, err := Add(to[t.asset].Available, t.amount)
		if err != nil {
			return errors.Wrapf(err, "account %d %s available", t.to, t.asset)
		}
		to[t.asset].Available = avail
	}

	for id, b := range staged {
		*l.account(id) = *b
	}
	return nil
}
