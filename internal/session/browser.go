package session

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"bot-marketplace/internal/logger"

	"go.uber.org/zap"
)

const (
	HomeURL   = "https://www.wildberries.ru/"
	SearchURL = "https://www.wildberries.ru/catalog/0/search.aspx?search=iphone"

	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"
)

// stealthScript esconde os sinais de automação antes de qualquer script da página
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['ru-RU', 'ru', 'en-US', 'en'] });
window.chrome = { runtime: {} };
window.navigator.chrome = { runtime: {} };
`

const hoverScript = `
(function() {
	const link = document.querySelector('a');
	if (!link) { return false; }
	link.scrollIntoView();
	link.dispatchEvent(new MouseEvent('mouseover', { bubbles: true }));
	return true;
})()
`

// BrowserAcquirer abre um Chrome headless para passar pelo desafio anti-bot
type BrowserAcquirer struct {
	ExecPath string
	HomeURL  string
	// SearchURL é visitada como último recurso quando o token não aparece
	SearchURL string

	Timeout     time.Duration
	SettleDelay time.Duration
}

// NewBrowserAcquirer cria a estratégia com os tempos padrão
func NewBrowserAcquirer(execPath string) *BrowserAcquirer {
	return &BrowserAcquirer{
		ExecPath:    execPath,
		HomeURL:     HomeURL,
		SearchURL:   SearchURL,
		Timeout:     90 * time.Second,
		SettleDelay: 10 * time.Second,
	}
}

func (b *BrowserAcquirer) Name() string { return "browser" }

// Acquire nunca entra em pânico: qualquer falha vira erro para o Store tentar a próxima estratégia
func (b *BrowserAcquirer) Acquire(ctx context.Context) (cookies []Cookie, err error) {
	defer func() {
		if r := recover(); r != nil {
			cookies, err = nil, fmt.Errorf("pânico no navegador: %v", r)
		}
	}()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("start-maximized", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(UserAgent),
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	runCtx, cancel := context.WithTimeout(browserCtx, b.Timeout)
	defer cancel()

	logger.Info("Abrindo o site no navegador", zap.String("url", b.HomeURL))

	var found []*network.Cookie
	err = chromedp.Run(runCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(b.HomeURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// O token aparece alguns segundos depois do carregamento
		chromedp.Sleep(b.SettleDelay),
		chromedp.Evaluate(`window.scrollTo(0, 500)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, 1000)`, nil),
		chromedp.Sleep(3*time.Second),
		readCookies(&found),
	)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar página inicial: %w", err)
	}
	logger.Info("Cookies após primeiro carregamento", zap.Strings("nomes", cookieNames(found)))

	if !hasCookie(found, TokenCookie) {
		logger.Warn("Token anti-bot ausente, simulando interação")
		var hovered bool
		if err := chromedp.Run(runCtx,
			chromedp.Evaluate(hoverScript, &hovered),
			chromedp.Sleep(3*time.Second),
			readCookies(&found),
		); err != nil {
			logger.Warn("Interação falhou", zap.Error(err))
		} else {
			logger.Info("Cookies após interação", zap.Bool("hover", hovered), zap.Strings("nomes", cookieNames(found)))
		}
	}

	if !hasCookie(found, TokenCookie) && b.SearchURL != "" {
		logger.Warn("Ainda sem token, abrindo página de busca")
		if err := chromedp.Run(runCtx,
			chromedp.Navigate(b.SearchURL),
			chromedp.Sleep(8*time.Second),
			readCookies(&found),
		); err != nil {
			logger.Warn("Falha ao abrir página de busca", zap.Error(err))
		}
	}

	cookies = make([]Cookie, 0, len(found))
	for _, c := range found {
		cookies = append(cookies, Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
	}
	logger.Info("Cookies obtidos pelo navegador",
		zap.Int("total", len(cookies)),
		zap.Strings("criticos", presentCritical(cookies)))

	if len(cookies) < 2 {
		return nil, fmt.Errorf("navegador retornou apenas %d cookies", len(cookies))
	}
	return cookies, nil
}

func readCookies(dst *[]*network.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		*dst = cookies
		return nil
	})
}

func hasCookie(cookies []*network.Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name {
			return true
		}
	}
	return false
}

func cookieNames(cookies []*network.Cookie) []string {
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	return names
}
