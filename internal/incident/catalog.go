package incident

// The built-in incident set covers the services the scripted war room knows
// how to talk about. Code snippets are display material for viewers, not
// executable fixtures.
var catalog = []Incident{
	{
		Service:        "billing",
		ErrorCode:      "BILLING_400",
		ErrorMessage:   "Missing required field: currency",
		Symptoms:       []string{"POST /api/billing/charge 400", "payment gateway: PaymentIntent requires currency"},
		RootCause:      "Billing service stopped receiving the currency field after an API contract change",
		FixDescription: "Pass the currency through to charge creation",
		FileName:       "services/billing.go",
		AgentOwner:     "BillingAgent",
		BuggyCode: `package billing

// CreateCharge submits a payment intent for the given amount.
func (s *Service) CreateCharge(paymentID string, amount int64) (*Charge, error) {
	// currency is no longer populated after the contract change
	return s.gateway.CreateIntent(IntentParams{
		Amount:        amount,
		PaymentMethod: paymentID,
		Confirm:       true,
	})
}
`,
		FixedCode: `package billing

// CreateCharge submits a payment intent for the given amount.
func (s *Service) CreateCharge(paymentID string, amount int64, currency string) (*Charge, error) {
	if currency == "" {
		currency = "usd"
	}
	return s.gateway.CreateIntent(IntentParams{
		Amount:        amount,
		Currency:      currency,
		PaymentMethod: paymentID,
		Confirm:       true,
	})
}
`,
	},
	{
		Service:        "billing",
		ErrorCode:      "BILLING_503",
		ErrorMessage:   "Payment gateway timeout - no retry logic",
		Symptoms:       []string{"POST /api/billing/charge 503", "gateway API timeouts", "intermittent payment failures"},
		RootCause:      "Billing service lacks retry logic for transient gateway failures",
		FixDescription: "Retry gateway calls with exponential backoff",
		FileName:       "services/billing.go",
		AgentOwner:     "BillingAgent",
		BuggyCode: `package billing

// ChargeCustomer bills a customer once. Transient gateway errors surface
// directly to the caller.
func (s *Service) ChargeCustomer(customerID string, amount int64) (*Charge, error) {
	return s.gateway.Charge(customerID, amount, "usd")
}
`,
		FixedCode: `package billing

// ChargeCustomer bills a customer, retrying transient gateway errors with
// exponential backoff.
func (s *Service) ChargeCustomer(customerID string, amount int64) (*Charge, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		ch, err := s.gateway.Charge(customerID, amount, "usd")
		if err == nil {
			return ch, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
		time.Sleep(time.Duration(1<<attempt) * time.Second)
	}
	return nil, lastErr
}
`,
	},
	{
		Service:        "ordering",
		ErrorCode:      "ORDER_409",
		ErrorMessage:   "Duplicate order - idempotency key missing",
		Symptoms:       []string{"POST /api/orders 409", "duplicate orders in DB", "customers charged twice"},
		RootCause:      "Order creation has no idempotency check, so client retries create duplicates",
		FixDescription: "Check the idempotency key before creating an order",
		FileName:       "services/ordering.go",
		AgentOwner:     "OrderingAgent",
		BuggyCode: `package ordering

// CreateOrder inserts a new order. Retried requests insert again.
func (s *Service) CreateOrder(userID string, items []Item, paymentID string) (*Order, error) {
	o := &Order{UserID: userID, Items: items, PaymentID: paymentID}
	return o, s.db.Insert(o)
}
`,
		FixedCode: `package ordering

// CreateOrder inserts a new order exactly once per idempotency key.
func (s *Service) CreateOrder(userID string, items []Item, paymentID, idemKey string) (*Order, error) {
	if existing, err := s.db.FindByIdempotencyKey(idemKey); err == nil && existing != nil {
		return existing, nil
	}
	o := &Order{UserID: userID, Items: items, PaymentID: paymentID, IdempotencyKey: idemKey}
	return o, s.db.Insert(o)
}
`,
	},
	{
		Service:        "auth",
		ErrorCode:      "AUTH_401",
		ErrorMessage:   "Token validation failing after secret rotation",
		Symptoms:       []string{"GET /api/* 401 spikes", "users logged out mid-session", "token signature mismatch"},
		RootCause:      "Auth service only loads the signing secret at startup, so rotated secrets invalidate every live token",
		FixDescription: "Accept both current and previous secrets during the rotation window",
		FileName:       "services/auth.go",
		AgentOwner:     "SREAgent",
		BuggyCode: `package auth

// Validate checks a token against the signing secret loaded at startup.
func (s *Service) Validate(token string) (string, error) {
	return parseAndVerify(token, s.secret)
}
`,
		FixedCode: `package auth

// Validate checks a token against the current secret, falling back to the
// previous secret during a rotation window.
func (s *Service) Validate(token string) (string, error) {
	sub, err := parseAndVerify(token, s.secret)
	if err == nil {
		return sub, nil
	}
	if s.previousSecret != "" {
		return parseAndVerify(token, s.previousSecret)
	}
	return "", err
}
`,
	},
	{
		Service:        "cache",
		ErrorCode:      "CACHE_502",
		ErrorMessage:   "Cache stampede overloading the database",
		Symptoms:       []string{"GET /api/products 502", "DB connection pool exhausted", "cache hit rate dropped to 4%"},
		RootCause:      "All keys share one TTL, so a mass expiry sends every request to the database at once",
		FixDescription: "Jitter cache TTLs and single-flight the refill",
		FileName:       "services/cache.go",
		AgentOwner:     "OrderingAgent",
		BuggyCode: `package cache

// Get returns the cached value or loads it from the database. Every miss
// hits the database directly.
func (c *Cache) Get(key string) ([]byte, error) {
	if v, ok := c.store.Lookup(key); ok {
		return v, nil
	}
	v, err := c.loader(key)
	if err != nil {
		return nil, err
	}
	c.store.Set(key, v, c.ttl)
	return v, nil
}
`,
		FixedCode: `package cache

// Get returns the cached value, coalescing concurrent misses for the same
// key into a single database load and jittering the TTL on refill.
func (c *Cache) Get(key string) ([]byte, error) {
	if v, ok := c.store.Lookup(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.loader(key)
	})
	if err != nil {
		return nil, err
	}
	b := v.([]byte)
	c.store.Set(key, b, c.ttl+jitter(c.ttl/10))
	return b, nil
}
`,
	},
	{
		// Infra-only incident: mitigation is a resource-limit change, no
		// code fix to stage, so the run skips the approval branch.
		Service:      "kubernetes",
		ErrorCode:    "K8S_OOM_137",
		ErrorMessage: "Worker pods OOM-killed under load",
		Symptoms:     []string{"pod restarts every ~90s", "exit code 137 in events", "queue depth climbing"},
		RootCause:    "Worker memory limit was sized for the old batch size; the new batching change doubled peak usage",
		AgentOwner:   "SREAgent",
	},
}
