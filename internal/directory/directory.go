package directory

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"telegram-crm-bot/internal/models"
)

// MinQueryLen — запросы короче игнорируются, иначе нечёткий поиск
// находит половину справочника.
const MinQueryLen = 2

// Directory — справочник клиентов с нечётким поиском по названию и менеджеру.
// После загрузки только читается, перечитывается целиком через Reload.
type Directory struct {
	path string
	log  *zap.Logger

	mu      sync.RWMutex
	clients []models.Client
}

// New загружает справочник из JSON-файла. Ошибка загрузки не фатальна:
// справочник остаётся пустым, поиск просто ничего не находит.
func New(path string, log *zap.Logger) *Directory {
	d := &Directory{path: path, log: log}
	if err := d.Reload(); err != nil {
		log.Error("не удалось загрузить справочник клиентов", zap.String("path", path), zap.Error(err))
	}
	return d
}

// Reload перечитывает файл и заменяет справочник целиком.
func (d *Directory) Reload() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return err
	}

	var all []models.Client
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	clients := all[:0]
	for _, c := range all {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Code) == "" {
			d.log.Warn("пропущена запись без названия или кода", zap.Int("id", c.ID))
			continue
		}
		clients = append(clients, c)
	}

	d.mu.Lock()
	d.clients = clients
	d.mu.Unlock()

	d.log.Info("справочник клиентов загружен", zap.Int("count", len(clients)))
	return nil
}

// Len возвращает размер справочника.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}

// ByID возвращает клиента по id.
func (d *Directory) ByID(id int) (models.Client, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.clients {
		if c.ID == id {
			return c, true
		}
	}
	return models.Client{}, false
}

type match struct {
	client models.Client
	score  int
}

// Search возвращает не более limit клиентов, похожих на запрос,
// лучшие первыми. При равных оценках сохраняется порядок загрузки.
func (d *Directory) Search(query string, limit int) []models.Client {
	q := strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(q) < MinQueryLen {
		return nil
	}
	tokens := strings.Fields(q)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []match
	for _, c := range d.clients {
		if s, ok := scoreClient(q, tokens, c); ok {
			matches = append(matches, match{client: c, score: s})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score < matches[j].score })

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	res := make([]models.Client, len(matches))
	for i, m := range matches {
		res[i] = m.client
	}
	return res
}

// scoreClient оценивает клиента по запросу: каждый токен должен совпасть
// хотя бы с одним полем, итог — сумма лучших оценок. Меньше — лучше.
func scoreClient(query string, tokens []string, c models.Client) (int, bool) {
	if strings.ToLower(c.Name) == query {
		return 0, true
	}

	total := 0
	for _, t := range tokens {
		best, ok := scoreField(t, c.Name)
		if s, ok2 := scoreField(t, c.Manager); ok2 && (!ok || s < best) {
			best, ok = s, true
		}
		if !ok {
			return 0, false
		}
		total += best
	}
	return 1 + total, true
}

func scoreField(token, field string) (int, bool) {
	if field == "" {
		return 0, false
	}
	f := strings.ToLower(field)

	if f == token {
		return 0, true
	}
	if strings.Contains(f, token) {
		return 1, true
	}
	if r := fuzzy.RankMatchNormalizedFold(token, f); r >= 0 {
		return 2 + r, true
	}

	// терпимость к опечаткам: расстояние Левенштейна до отдельных слов
	best := -1
	for _, w := range strings.Fields(f) {
		if dist := fuzzy.LevenshteinDistance(token, w); dist <= maxEdits(token) && (best < 0 || dist < best) {
			best = dist
		}
	}
	if best >= 0 {
		return 10 + best, true
	}
	return 0, false
}

func maxEdits(token string) int {
	switch n := utf8.RuneCountInString(token); {
	case n <= 4:
		return 1
	case n <= 7:
		return 2
	default:
		return 3
	}
}
