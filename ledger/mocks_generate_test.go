package ledger

//go:generate go run go.uber.org/mock/mockgen@v0.5 -package=${GOPACKAGE}mock -source=transport.go -destination=${GOPACKAGE}mock/transport.go -mock_names=Transport=Transport -exclude_interfaces=Confirmer
