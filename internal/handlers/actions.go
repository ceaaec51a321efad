package handlers

import (
	"net/url"
	"strconv"
	"strings"
)

// actionKind — типизированные callback-действия. Строка из кнопки
// разбирается ровно один раз, на границе с транспортом.
type actionKind int

const (
	actionUnknown actionKind = iota
	actionSelectClient
	actionNewSearch
	actionConfirmRegistration
	actionCancelRegistration
	actionNewRegistration
	actionShowStats
	actionPriceList
	actionApprove
	actionReject
	actionClientsPage
	actionClientsRefresh
	actionClientsSearchStart
	actionClientsClearSearch
	actionClientsBack
	actionClientInfo
	actionResetPassword
)

type action struct {
	kind actionKind

	clientID      int    // select_client
	tier1         bool   // price_list
	contactID     string // approve, reject, client_info, reset_password
	userChatID    int64  // approve, reject
	priceCategory string // approve
	page          int    // clients_page
	search        string // clients_page, clients_refresh
}

func selectClientData(id int) string { return "select_client_" + strconv.Itoa(id) }

func priceListData(tier1 bool) string {
	if tier1 {
		return "price_list_1"
	}
	return "price_list_default"
}

func approveData(contactID string, userChatID int64, priceCategory string) string {
	if priceCategory == "" {
		priceCategory = "0"
	}
	return "approve_reg_" + contactID + "_" + strconv.FormatInt(userChatID, 10) + "_" + priceCategory
}

func rejectData(contactID string, userChatID int64) string {
	return "reject_reg_" + contactID + "_" + strconv.FormatInt(userChatID, 10)
}

func clientsPageData(page int, search string) string {
	data := "clients_page_" + strconv.Itoa(page)
	if search != "" {
		data += "_search_" + url.QueryEscape(search)
	}
	return data
}

func clientsRefreshData(search string) string {
	if search != "" {
		return "clients_refresh_search_" + url.QueryEscape(search)
	}
	return "clients_refresh"
}

func clientInfoData(contactID string) string    { return "client_info_" + contactID }
func resetPasswordData(contactID string) string { return "reset_password_" + contactID }

func parseAction(data string) action {
	switch data {
	case "new_search":
		return action{kind: actionNewSearch}
	case "confirm_registration":
		return action{kind: actionConfirmRegistration}
	case "cancel_registration":
		return action{kind: actionCancelRegistration}
	case "new_registration":
		return action{kind: actionNewRegistration}
	case "show_stats":
		return action{kind: actionShowStats}
	case "price_list_default":
		return action{kind: actionPriceList}
	case "price_list_1":
		return action{kind: actionPriceList, tier1: true}
	case "clients_refresh":
		return action{kind: actionClientsRefresh}
	case "clients_search_start":
		return action{kind: actionClientsSearchStart}
	case "clients_clear_search":
		return action{kind: actionClientsClearSearch}
	case "clients_back":
		return action{kind: actionClientsBack}
	}

	if rest, ok := strings.CutPrefix(data, "select_client_"); ok {
		id, err := strconv.Atoi(rest)
		if err != nil {
			return action{}
		}
		return action{kind: actionSelectClient, clientID: id}
	}

	if rest, ok := strings.CutPrefix(data, "approve_reg_"); ok {
		parts := strings.Split(rest, "_")
		if len(parts) != 3 {
			return action{}
		}
		chatID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return action{}
		}
		cat := parts[2]
		if cat == "0" {
			cat = ""
		}
		return action{kind: actionApprove, contactID: parts[0], userChatID: chatID, priceCategory: cat}
	}

	if rest, ok := strings.CutPrefix(data, "reject_reg_"); ok {
		parts := strings.Split(rest, "_")
		if len(parts) != 2 {
			return action{}
		}
		chatID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return action{}
		}
		return action{kind: actionReject, contactID: parts[0], userChatID: chatID}
	}

	if rest, ok := strings.CutPrefix(data, "clients_page_"); ok {
		pageStr, search := rest, ""
		if p, q, found := strings.Cut(rest, "_search_"); found {
			pageStr = p
			if unescaped, err := url.QueryUnescape(q); err == nil {
				search = unescaped
			}
		}
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 0 {
			return action{}
		}
		return action{kind: actionClientsPage, page: page, search: search}
	}

	if rest, ok := strings.CutPrefix(data, "clients_refresh_search_"); ok {
		search, err := url.QueryUnescape(rest)
		if err != nil {
			return action{}
		}
		return action{kind: actionClientsRefresh, search: search}
	}

	if rest, ok := strings.CutPrefix(data, "client_info_"); ok && rest != "" {
		return action{kind: actionClientInfo, contactID: rest}
	}

	if rest, ok := strings.CutPrefix(data, "reset_password_"); ok && rest != "" {
		return action{kind: actionResetPassword, contactID: rest}
	}

	return action{}
}
