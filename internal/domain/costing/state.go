package costing

// State es el acumulador por grupo que cada manejador recibe y devuelve.
type State struct {
	Balance Balance
	Queue   Queue
}
