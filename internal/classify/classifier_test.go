package classify

import (
	"strings"
	"testing"

	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestClassifier_Classify(t *testing.T) {
	c := Default()

	tests := []struct {
		name         string
		description  *string
		wantType     string
		wantCategory string
	}{
		{name: "upi payment", description: strPtr("UPI payment to grocery store"), wantType: TypeUPIPayment, wantCategory: CategoryPayment},
		{name: "upi received", description: strPtr("UPI received from Ravi"), wantType: TypeUPIReceived, wantCategory: CategoryPayment},
		{name: "upi credited", description: strPtr("Amount credited via UPI"), wantType: TypeUPIReceived, wantCategory: CategoryPayment},
		{name: "upi refund is a payment", description: strPtr("upi refund"), wantType: TypeUPIPayment, wantCategory: CategoryPayment},
		{name: "salary", description: strPtr("Salary credit"), wantType: TypeSalary, wantCategory: CategoryIncome},
		{name: "subscription", description: strPtr("Netflix subscription"), wantType: Other, wantCategory: CategorySubscription},
		{name: "atm", description: strPtr("ATM withdrawal"), wantType: TypeATM, wantCategory: CategoryWithdrawal},
		{name: "neft transfer", description: strPtr("NEFT to landlord"), wantType: TypeTransfer, wantCategory: Other},
		{name: "interest", description: strPtr("Int. credited for quarter"), wantType: TypeInterest, wantCategory: CategoryIncome},
		{name: "earlier type group wins", description: strPtr("EMI bill payment"), wantType: TypeBillPayment, wantCategory: CategoryPayment},
		{name: "earlier category wins", description: strPtr("loan bill"), wantType: TypeLoan, wantCategory: CategoryBill},
		{name: "case insensitive", description: strPtr("UBER TRIP"), wantType: Other, wantCategory: CategoryTravel},
		{name: "no match", description: strPtr("misc"), wantType: Other, wantCategory: Other},
		{name: "empty description", description: strPtr(""), wantType: Other, wantCategory: Other},
		{name: "missing description", description: nil, wantType: Unknown, wantCategory: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.description)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantCategory, got.Category)
		})
	}
}

func TestClassifier_UPIProperty(t *testing.T) {
	c := Default()
	for _, desc := range []string{
		"upi received", "UPI CREDIT", "credited by upi", "upi/credit/123",
	} {
		assert.Equal(t, TypeUPIReceived, c.Classify(strPtr(desc)).Type, desc)
	}
	for _, desc := range []string{
		"upi", "UPI payment", "sent via upi", "upi-netflix",
	} {
		assert.Equal(t, TypeUPIPayment, c.Classify(strPtr(desc)).Type, desc)
	}
}

func TestClassifier_Idempotent(t *testing.T) {
	c := Default()
	for _, desc := range []string{"Salary credit", "ATM withdrawal", "loan bill", "random"} {
		first := c.Classify(strPtr(desc))
		second := c.Classify(strPtr(desc))
		assert.Equal(t, first, second)
	}
}

func TestClassifier_Apply(t *testing.T) {
	ds := ledger.Normalize("test", []ledger.RawRow{
		{Date: "01/06/25", Description: strPtr("UPI payment to grocery store"), Amount: "-500"},
		{Date: "02/06/25", Description: nil, Amount: "10"},
	})

	labelled := Default().Apply(ds)
	require.Equal(t, 2, labelled.Len())
	assert.Equal(t, TypeUPIPayment, labelled.Records[0].TransactionType)
	assert.Equal(t, CategoryPayment, labelled.Records[0].Category)
	assert.Equal(t, Unknown, labelled.Records[1].TransactionType)
	assert.Equal(t, Unknown, labelled.Records[1].Category)

	// The input dataset is left untouched.
	assert.Empty(t, ds.Records[0].TransactionType)
}

func TestClassifier_Categories(t *testing.T) {
	assert.Equal(t, []string{
		CategoryPayment, CategoryBill, CategoryIncome, CategoryShopping, CategoryEntertainment,
		CategoryInvestment, CategoryWithdrawal, CategorySubscription, CategoryEMI, CategoryTravel,
	}, Default().Categories())
}

func TestNew_Validation(t *testing.T) {
	valid := DefaultRules()

	tests := []struct {
		name    string
		mutate  func(rs *RuleSet)
		wantErr string
	}{
		{name: "defaults", mutate: func(*RuleSet) {}},
		{name: "empty label", mutate: func(rs *RuleSet) { rs.Categories[0].Label = "  " }, wantErr: "label is empty"},
		{name: "reserved label", mutate: func(rs *RuleSet) { rs.Types[0].Label = "other" }, wantErr: "reserved"},
		{name: "duplicate label", mutate: func(rs *RuleSet) { rs.Categories[1].Label = "payment" }, wantErr: "duplicate"},
		{name: "no keywords", mutate: func(rs *RuleSet) { rs.Types[2].Keywords = []string{" "} }, wantErr: "no keywords"},
		{name: "no rules", mutate: func(rs *RuleSet) { rs.Types = nil }, wantErr: "no type rules"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := RuleSet{Types: cloneRules(valid.Types), Categories: cloneRules(valid.Categories)}
			tt.mutate(&rs)
			_, err := New(rs)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRules(t *testing.T) {
	doc := `
categories:
  - label: groceries
    keywords: [Grocery, SUPERMARKET]
  - label: payment
    keywords: [upi]
`
	rules, err := LoadRules(strings.NewReader(doc))
	require.NoError(t, err)

	// Types fall back to the built-in list.
	assert.Equal(t, DefaultRules().Types, rules.Types)
	require.Len(t, rules.Categories, 2)
	assert.Equal(t, Rule{Label: "GROCERIES", Keywords: []string{"grocery", "supermarket"}}, rules.Categories[0])

	c, err := New(rules)
	require.NoError(t, err)
	assert.Equal(t, "GROCERIES", c.Classify(strPtr("UPI payment to grocery store")).Category)
	assert.Equal(t, []string{"GROCERIES", "PAYMENT"}, c.Categories())
}

func TestLoadRules_Errors(t *testing.T) {
	_, err := LoadRules(strings.NewReader("colours: [red]\n"))
	assert.Error(t, err)

	_, err = LoadRules(strings.NewReader("types:\n  - label: OTHER\n    keywords: [x]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestLoadRules_Empty(t *testing.T) {
	rules, err := LoadRules(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)
}
