package classify

// Labels assigned when no rule applies.
const (
	// Unknown is assigned when the description is missing.
	Unknown = "UNKNOWN"
	// Other is assigned when the description matches no rule.
	Other = "OTHER"
)

// Transaction types.
const (
	TypeUPIPayment  = "UPI_PAYMENT"
	TypeUPIReceived = "UPI_RECEIVED"
	TypeBillPayment = "BILL_PAYMENT"
	TypeSalary      = "SALARY"
	TypeInterest    = "INTEREST"
	TypeATM         = "ATM"
	TypeTransfer    = "TRANSFER"
	TypeInvestment  = "INVESTMENT"
	TypeRefund      = "REFUND"
	TypeLoan        = "LOAN"
)

// Categories.
const (
	CategoryPayment       = "PAYMENT"
	CategoryBill          = "BILL"
	CategoryIncome        = "INCOME"
	CategoryShopping      = "SHOPPING"
	CategoryEntertainment = "ENTERTAINMENT"
	CategoryInvestment    = "INVESTMENT"
	CategoryWithdrawal    = "WITHDRAWAL"
	CategorySubscription  = "SUBSCRIPTION"
	CategoryEMI           = "EMI"
	CategoryTravel        = "TRAVEL"
)

// The UPI check runs before the ordered type rules.
const upiMarker = "upi"

var upiCreditWords = []string{"received", "credit", "credited"}

// Rule assigns Label to any description containing one of Keywords.
type Rule struct {
	Label    string   `yaml:"label" json:"label"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// RuleSet holds the two independent rule lists. Each list is ordered by
// priority: the first rule with a matching keyword wins.
type RuleSet struct {
	Types      []Rule `yaml:"types" json:"types"`
	Categories []Rule `yaml:"categories" json:"categories"`
}

var defaultTypeRules = []Rule{
	{Label: TypeBillPayment, Keywords: []string{"billpay", "bill payment", "utility"}},
	{Label: TypeSalary, Keywords: []string{"salary", "sal cr", "monthly pay"}},
	{Label: TypeInterest, Keywords: []string{"interest", "int.", "int cr"}},
	{Label: TypeATM, Keywords: []string{"atm", "cash withdrawal"}},
	{Label: TypeTransfer, Keywords: []string{"transfer", "trf", "neft", "rtgs", "imps"}},
	{Label: TypeInvestment, Keywords: []string{"investment", "mutual fund", "shares"}},
	{Label: TypeRefund, Keywords: []string{"refund", "cashback", "return"}},
	{Label: TypeLoan, Keywords: []string{"loan", "emi", "mortgage"}},
}

var defaultCategoryRules = []Rule{
	{Label: CategoryPayment, Keywords: []string{"upi", "pay", "sent", "transfer", "trf"}},
	{Label: CategoryBill, Keywords: []string{"bill", "utility", "electricity", "water", "gas", "internet"}},
	{Label: CategoryIncome, Keywords: []string{"salary", "interest", "credit", "received", "refund"}},
	{Label: CategoryShopping, Keywords: []string{"purchase", "shopping", "mart", "store", "shop"}},
	{Label: CategoryEntertainment, Keywords: []string{"movie", "restaurant", "dining", "cafe", "food"}},
	{Label: CategoryInvestment, Keywords: []string{"mutual fund", "stocks", "shares", "investment", "dividend"}},
	{Label: CategoryWithdrawal, Keywords: []string{"atm", "withdrawal", "cash"}},
	{Label: CategorySubscription, Keywords: []string{"subscription", "netflix", "amazon prime", "spotify"}},
	{Label: CategoryEMI, Keywords: []string{"emi", "loan", "mortgage", "installment"}},
	{Label: CategoryTravel, Keywords: []string{"travel", "flight", "hotel", "bus", "train", "taxi", "uber"}},
}

// DefaultRules returns a copy of the built-in rule set.
func DefaultRules() RuleSet {
	return RuleSet{
		Types:      cloneRules(defaultTypeRules),
		Categories: cloneRules(defaultCategoryRules),
	}
}

func cloneRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = Rule{Label: r.Label, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}
