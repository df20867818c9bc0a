package schema

// Entity definitions for the legal-practice domain. Aliases collect the
// column-name variations observed across source systems; alias lookup folds
// case, whitespace and punctuation, so "Client Number", "ClientNumber" and
// "client_number" all land on the same canonical field.

func init() {
	Register(Definition{
		Entity: PracticeAreas,
		Label:  "Practice Areas",
		Fields: []FieldSpec{
			{Name: "name", Aliases: []string{"Practice Area", "Area Name", "name"}, Type: FieldText, Required: true, IDKey: true, NameKey: true},
			{Name: "code", Aliases: []string{"Code", "Area Code"}, Type: FieldIdentifier},
			{Name: "description", Aliases: []string{"Description"}, Type: FieldText},
		},
	})

	Register(Definition{
		Entity: Clients,
		Label:  "Clients",
		Fields: []FieldSpec{
			{Name: "client_number", Aliases: []string{"Client Number", "ClientNumber", "client_number", "ClientID", "client_id"}, Type: FieldIdentifier, Required: true, IDKey: true},
			{Name: "name", Aliases: []string{"Client Name", "Name"}, Type: FieldText, Required: true, NameKey: true},
			{Name: "client_type", Aliases: []string{"Type", "client_type"}, Type: FieldEnum, EnumValues: []string{"individual", "business", "nonprofit"}},
			{Name: "email", Aliases: []string{"Email Address", "Email"}, Type: FieldText},
			{Name: "phone", Aliases: []string{"Phone", "Phone Number"}, Type: FieldPhone},
			{Name: "address", Aliases: []string{"Address"}, Type: FieldText},
			{Name: "tax_id", Aliases: []string{"Tax ID", "TaxID", "tax_id"}, Type: FieldIdentifier, StableKey: true},
			{Name: "status", Aliases: []string{"Status"}, Type: FieldEnum, EnumValues: []string{"active", "inactive"}},
			{Name: "joined_date", Aliases: []string{"Joined Date", "created_date"}, Type: FieldDate},
		},
	})

	Register(Definition{
		Entity: Attorneys,
		Label:  "Attorneys",
		Fields: []FieldSpec{
			{Name: "employee_id", Aliases: []string{"EmployeeID", "employee_id", "Attorney ID"}, Type: FieldIdentifier, Required: true, IDKey: true},
			{Name: "first_name", Aliases: []string{"FirstName", "first_name"}, Type: FieldText, Required: true, NameKey: true},
			{Name: "last_name", Aliases: []string{"LastName", "last_name"}, Type: FieldText, Required: true, NameKey: true},
			{Name: "email", Aliases: []string{"Email", "email"}, Type: FieldText},
			{Name: "bar_number", Aliases: []string{"Bar #", "BarNumber", "bar_number"}, Type: FieldIdentifier, StableKey: true},
			{Name: "level", Aliases: []string{"Level"}, Type: FieldEnum, EnumValues: []string{"partner", "senior", "associate", "junior"}},
			{Name: "hire_date", Aliases: []string{"HireDate", "hire_date"}, Type: FieldDate},
			{Name: "hourly_rate", Aliases: []string{"Rate", "hourly_rate"}, Type: FieldDecimal},
		},
	})

	Register(Definition{
		Entity: Services,
		Label:  "Services",
		Fields: []FieldSpec{
			{Name: "code", Aliases: []string{"Code", "Service Code", "service_code"}, Type: FieldIdentifier, Required: true, IDKey: true},
			{Name: "name", Aliases: []string{"Name", "Service Name"}, Type: FieldText, Required: true, NameKey: true},
			{Name: "description", Aliases: []string{"Description"}, Type: FieldText},
			{Name: "default_rate", Aliases: []string{"Default Rate", "default_rate"}, Type: FieldDecimal},
		},
	})

	Register(Definition{
		Entity:    Matters,
		Label:     "Matters",
		DependsOn: []EntityType{Clients, Attorneys, PracticeAreas},
		Fields: []FieldSpec{
			{Name: "matter_number", Aliases: []string{"MatterNumber", "matter_number", "Matter #"}, Type: FieldIdentifier, Required: true, IDKey: true},
			{Name: "client", Aliases: []string{"ClientID", "client_id", "Client"}, Type: FieldReference, References: Clients, Required: true},
			{Name: "title", Aliases: []string{"Title"}, Type: FieldText, Required: true, NameKey: true},
			{Name: "description", Aliases: []string{"Description"}, Type: FieldText},
			{Name: "practice_area", Aliases: []string{"Practice Area", "practice_area"}, Type: FieldReference, References: PracticeAreas},
			{Name: "lead_attorney", Aliases: []string{"LeadAttorney", "lead_attorney"}, Type: FieldReference, References: Attorneys},
			{Name: "status", Aliases: []string{"Status"}, Type: FieldEnum, EnumValues: []string{"open", "pending", "closed", "on_hold"}},
			{Name: "billing_type", Aliases: []string{"BillingType", "billing_type"}, Type: FieldEnum, EnumValues: []string{"hourly", "flat_fee", "contingency"}},
			{Name: "opened_date", Aliases: []string{"OpenedDate", "opened_date"}, Type: FieldDate},
			{Name: "estimated_value", Aliases: []string{"EstimatedValue", "estimated_value"}, Type: FieldDecimal},
		},
	})

	Register(Definition{
		Entity:    TimeEntries,
		Label:     "Time Entries",
		DependsOn: []EntityType{Matters, Attorneys, Services},
		Fields: []FieldSpec{
			{Name: "date", Aliases: []string{"Date", "work_date"}, Type: FieldDate, Required: true},
			{Name: "matter", Aliases: []string{"Matter #", "matter_reference", "matter_number"}, Type: FieldReference, References: Matters, Required: true},
			{Name: "attorney", Aliases: []string{"Attorney ID", "attorney_name", "attorney_id", "Attorney"}, Type: FieldReference, References: Attorneys, Required: true},
			{Name: "service", Aliases: []string{"Service", "service_code"}, Type: FieldReference, References: Services},
			{Name: "hours", Aliases: []string{"Hours", "time_spent"}, Type: FieldDecimal, Required: true},
			{Name: "hourly_rate", Aliases: []string{"Hourly Rate", "rate_charged"}, Type: FieldDecimal},
			{Name: "description", Aliases: []string{"Description", "work_description"}, Type: FieldText},
			{Name: "status", Aliases: []string{"Status"}, Type: FieldEnum, EnumValues: []string{"draft", "submitted", "approved", "billed"}},
		},
	})

	Register(Definition{
		Entity:    Expenses,
		Label:     "Expenses",
		DependsOn: []EntityType{Matters, Attorneys},
		Fields: []FieldSpec{
			{Name: "date", Aliases: []string{"Date", "expense_date"}, Type: FieldDate, Required: true},
			{Name: "matter", Aliases: []string{"Matter #", "matter_number", "matter_reference"}, Type: FieldReference, References: Matters, Required: true},
			{Name: "attorney", Aliases: []string{"Attorney ID", "attorney_id", "Attorney"}, Type: FieldReference, References: Attorneys},
			{Name: "category", Aliases: []string{"Category"}, Type: FieldText},
			{Name: "description", Aliases: []string{"Description"}, Type: FieldText},
			{Name: "amount", Aliases: []string{"Amount"}, Type: FieldDecimal, Required: true},
			{Name: "is_billable", Aliases: []string{"Billable", "is_billable"}, Type: FieldBool},
			{Name: "receipt_number", Aliases: []string{"Receipt #", "receipt_number"}, Type: FieldIdentifier, IDKey: true},
		},
	})

	Register(Definition{
		Entity:    Invoices,
		Label:     "Invoices",
		DependsOn: []EntityType{Matters, Clients, TimeEntries},
		Fields: []FieldSpec{
			{Name: "invoice_number", Aliases: []string{"invoice_id", "invoice_number", "InvoiceNumber"}, Type: FieldIdentifier, Required: true, IDKey: true},
			{Name: "matter", Aliases: []string{"matter", "matter_number"}, Type: FieldReference, References: Matters, Required: true},
			{Name: "client", Aliases: []string{"client", "client_id"}, Type: FieldReference, References: Clients},
			{Name: "invoice_date", Aliases: []string{"invoice_date"}, Type: FieldDate},
			{Name: "due_date", Aliases: []string{"due_date"}, Type: FieldDate},
			{Name: "status", Aliases: []string{"status"}, Type: FieldEnum, EnumValues: []string{"draft", "sent", "paid", "overdue", "cancelled"}},
			{Name: "total", Aliases: []string{"total", "total_amount", "amount"}, Type: FieldDecimal},
		},
	})

	Register(Definition{
		Entity:    Payments,
		Label:     "Payments",
		DependsOn: []EntityType{Invoices, Clients},
		Fields: []FieldSpec{
			{Name: "invoice", Aliases: []string{"invoice", "invoice_number", "invoice_id"}, Type: FieldReference, References: Invoices, Required: true},
			{Name: "client", Aliases: []string{"client", "client_id"}, Type: FieldReference, References: Clients},
			{Name: "payment_date", Aliases: []string{"Payment Date", "payment_date", "date"}, Type: FieldDate, Required: true},
			{Name: "amount", Aliases: []string{"Amount", "amount"}, Type: FieldDecimal, Required: true},
			{Name: "payment_method", Aliases: []string{"Method", "payment_method"}, Type: FieldEnum, EnumValues: []string{"check", "wire", "credit_card", "ach", "cash"}},
			{Name: "reference_number", Aliases: []string{"Reference #", "reference_number"}, Type: FieldIdentifier, IDKey: true},
			{Name: "notes", Aliases: []string{"Notes"}, Type: FieldText},
		},
	})
}
