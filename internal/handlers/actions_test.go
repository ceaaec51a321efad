package handlers

import "testing"

func TestParseActionSimple(t *testing.T) {
	cases := []struct {
		data string
		kind actionKind
	}{
		{"new_search", actionNewSearch},
		{"confirm_registration", actionConfirmRegistration},
		{"cancel_registration", actionCancelRegistration},
		{"new_registration", actionNewRegistration},
		{"show_stats", actionShowStats},
		{"clients_refresh", actionClientsRefresh},
		{"clients_search_start", actionClientsSearchStart},
		{"clients_clear_search", actionClientsClearSearch},
		{"clients_back", actionClientsBack},
		{"", actionUnknown},
		{"что-то левое", actionUnknown},
		{"select_client_abc", actionUnknown},
	}
	for _, c := range cases {
		if got := parseAction(c.data); got.kind != c.kind {
			t.Errorf("parseAction(%q).kind = %v, ожидалось %v", c.data, got.kind, c.kind)
		}
	}
}

func TestParseSelectClient(t *testing.T) {
	a := parseAction(selectClientData(42))
	if a.kind != actionSelectClient || a.clientID != 42 {
		t.Fatalf("неверный разбор select_client: %+v", a)
	}
}

func TestParsePriceList(t *testing.T) {
	if a := parseAction(priceListData(false)); a.kind != actionPriceList || a.tier1 {
		t.Fatalf("неверный разбор price_list_default: %+v", a)
	}
	if a := parseAction(priceListData(true)); a.kind != actionPriceList || !a.tier1 {
		t.Fatalf("неверный разбор price_list_1: %+v", a)
	}
}

func TestParseApproveRoundTrip(t *testing.T) {
	a := parseAction(approveData("1577", 987654321, "4"))
	if a.kind != actionApprove {
		t.Fatalf("kind = %v", a.kind)
	}
	if a.contactID != "1577" || a.userChatID != 987654321 || a.priceCategory != "4" {
		t.Fatalf("неверный разбор approve: %+v", a)
	}

	// без категории прайса
	a = parseAction(approveData("1577", 5, ""))
	if a.priceCategory != "" {
		t.Fatalf("пустая категория должна восстанавливаться пустой, получено %q", a.priceCategory)
	}
}

func TestParseRejectRoundTrip(t *testing.T) {
	a := parseAction(rejectData("99", 123))
	if a.kind != actionReject || a.contactID != "99" || a.userChatID != 123 {
		t.Fatalf("неверный разбор reject: %+v", a)
	}
}

func TestParseClientsPage(t *testing.T) {
	a := parseAction(clientsPageData(3, ""))
	if a.kind != actionClientsPage || a.page != 3 || a.search != "" {
		t.Fatalf("неверный разбор clients_page: %+v", a)
	}

	a = parseAction(clientsPageData(0, "Рога и Копыта"))
	if a.kind != actionClientsPage || a.page != 0 || a.search != "Рога и Копыта" {
		t.Fatalf("поисковый запрос должен переживать round-trip: %+v", a)
	}

	if a := parseAction("clients_page_-1"); a.kind != actionUnknown {
		t.Fatalf("отрицательная страница должна отклоняться: %+v", a)
	}
}

func TestParseClientsRefreshWithSearch(t *testing.T) {
	a := parseAction(clientsRefreshData("ООО Ромашка"))
	if a.kind != actionClientsRefresh || a.search != "ООО Ромашка" {
		t.Fatalf("неверный разбор clients_refresh с поиском: %+v", a)
	}
}

func TestParseClientInfoAndResetPassword(t *testing.T) {
	if a := parseAction(clientInfoData("1577")); a.kind != actionClientInfo || a.contactID != "1577" {
		t.Fatalf("неверный разбор client_info: %+v", a)
	}
	if a := parseAction(resetPasswordData("1577")); a.kind != actionResetPassword || a.contactID != "1577" {
		t.Fatalf("неверный разбор reset_password: %+v", a)
	}
	if a := parseAction("client_info_"); a.kind != actionUnknown {
		t.Fatalf("пустой contact_id должен отклоняться: %+v", a)
	}
}
