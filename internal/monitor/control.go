package monitor

// Control entrega ao monitor os sinais "parse agora" e "reiniciar parser".
// Os sinais são por borda: vários pedidos antes do consumo valem como um.
type Control struct {
	parse   chan struct{}
	restart chan struct{}
}

func NewControl() *Control {
	return &Control{
		parse:   make(chan struct{}, 1),
		restart: make(chan struct{}, 1),
	}
}

// NotifyNow antecipa o próximo ciclo
func (c *Control) NotifyNow() {
	select {
	case c.parse <- struct{}{}:
	default:
	}
}

// RequestRestart interrompe o lote atual e recria o scraper antes do próximo ciclo
func (c *Control) RequestRestart() {
	select {
	case c.restart <- struct{}{}:
	default:
	}
}

// takeRestart consome um pedido de reinício pendente, sem bloquear
func (c *Control) takeRestart() bool {
	select {
	case <-c.restart:
		return true
	default:
		return false
	}
}
