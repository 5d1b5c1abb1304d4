package service

import (
	"fmt"

	"arb_bot/internal/models"
)

// OrderRouter maps an order to a named account. Route is a pure
// function; Validate must pass before first use.
type OrderRouter interface {
	Route(o models.Order) (string, error)
	Validate() error
}

// MarketRouter routes by the order's market/venue identifier.
type MarketRouter struct {
	Routes  map[string]string // market -> account
	Default string
}

func (r *MarketRouter) Route(o models.Order) (string, error) {
	if acc, ok := r.Routes[o.Market]; ok {
		return acc, nil
	}
	return r.Default, nil
}

func (r *MarketRouter) Validate() error {
	if len(r.Routes) == 0 {
		return fmt.Errorf("market router: empty routing table")
	}
	if r.Default == "" {
		return fmt.Errorf("market router: empty default account")
	}
	return nil
}

// InstrumentRouter routes by instrument identifier.
type InstrumentRouter struct {
	Routes  map[string]string // instID -> account
	Default string
}

func (r *InstrumentRouter) Route(o models.Order) (string, error) {
	if acc, ok := r.Routes[o.InstID]; ok {
		return acc, nil
	}
	return r.Default, nil
}

func (r *InstrumentRouter) Validate() error {
	if len(r.Routes) == 0 {
		return fmt.Errorf("instrument router: empty routing table")
	}
	if r.Default == "" {
		return fmt.Errorf("instrument router: empty default account")
	}
	return nil
}

// SecurityTypeRouter routes by security type (spot/futures/option).
type SecurityTypeRouter struct {
	Routes  map[models.SecurityType]string
	Default string
}

func (r *SecurityTypeRouter) Route(o models.Order) (string, error) {
	if acc, ok := r.Routes[o.SecurityType]; ok {
		return acc, nil
	}
	return r.Default, nil
}

func (r *SecurityTypeRouter) Validate() error {
	if len(r.Routes) == 0 {
		return fmt.Errorf("security type router: empty routing table")
	}
	if r.Default == "" {
		return fmt.Errorf("security type router: empty default account")
	}
	return nil
}

// SimpleRouter sends everything to one account.
type SimpleRouter struct {
	Account string
}

func (r *SimpleRouter) Route(models.Order) (string, error) {
	return r.Account, nil
}

func (r *SimpleRouter) Validate() error {
	if r.Account == "" {
		return fmt.Errorf("simple router: empty account")
	}
	return nil
}

// NewRouter builds a validated router by policy name.
func NewRouter(policy string, routes map[string]string, def string) (OrderRouter, error) {
	var r OrderRouter
	switch policy {
	case "market":
		r = &MarketRouter{Routes: routes, Default: def}
	case "instrument":
		r = &InstrumentRouter{Routes: routes, Default: def}
	case "security_type":
		typed := make(map[models.SecurityType]string, len(routes))
		for k, v := range routes {
			typed[models.SecurityType(k)] = v
		}
		r = &SecurityTypeRouter{Routes: typed, Default: def}
	case "simple", "":
		r = &SimpleRouter{Account: def}
	default:
		return nil, fmt.Errorf("unknown router policy %q", policy)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
