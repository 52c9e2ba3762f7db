package ledger

import (
	"context"
	"sort"

	"google.golang.org/grpc"

	"ledgerclient/ledger"
)

// RegisterService exposes impl on registrar under the node service names.
// Transactions arriving on a method that does not match their body kind are
// answered with INVALID_TRANSACTION_BODY.
func RegisterService(registrar grpc.ServiceRegistrar, impl ledger.Service) {
	for _, desc := range serviceDescs() {
		registrar.RegisterService(desc, impl)
	}
}

func serviceDescs() []*grpc.ServiceDesc {
	byService := make(map[string]*grpc.ServiceDesc)
	desc := func(name string) *grpc.ServiceDesc {
		d, ok := byService[name]
		if !ok {
			d = &grpc.ServiceDesc{
				ServiceName: name,
				HandlerType: (*ledger.Service)(nil),
				Metadata:    "ledger.json",
			}
			byService[name] = d
		}
		return d
	}

	txMethods := make(map[route]bool)
	for _, r := range transactionRoutes {
		txMethods[r] = true
	}
	for _, svc := range []string{FileService, SmartContractService} {
		txMethods[route{svc, "systemDelete"}] = true
		txMethods[route{svc, "systemUndelete"}] = true
	}
	for r := range txMethods {
		d := desc(r.service)
		d.Methods = append(d.Methods, grpc.MethodDesc{MethodName: r.method, Handler: transactionHandler(r)})
	}
	for _, r := range queryRoutes {
		d := desc(r.service)
		d.Methods = append(d.Methods, grpc.MethodDesc{MethodName: r.method, Handler: queryHandler(r)})
	}

	out := make([]*grpc.ServiceDesc, 0, len(byService))
	for _, d := range byService {
		sort.Slice(d.Methods, func(i, j int) bool { return d.Methods[i].MethodName < d.Methods[j].MethodName })
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceName < out[j].ServiceName })
	return out
}

func transactionHandler(r route) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		tx := new(ledger.Transaction)
		if err := dec(tx); err != nil {
			return nil, err
		}
		handle := func(ctx context.Context, req any) (any, error) {
			tx := req.(*ledger.Transaction)
			if want, err := transactionRoute(&tx.Body); err != nil || want != r {
				return &ledger.TransactionResponse{Precheck: ledger.StatusInvalidTransactionBody}, nil
			}
			return srv.(ledger.Service).SubmitTransaction(ctx, tx)
		}
		if interceptor == nil {
			return handle(ctx, tx)
		}
		return interceptor(ctx, tx, &grpc.UnaryServerInfo{Server: srv, FullMethod: r.fullMethod()}, handle)
	}
}

func queryHandler(r route) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		q := new(ledger.Query)
		if err := dec(q); err != nil {
			return nil, err
		}
		handle := func(ctx context.Context, req any) (any, error) {
			q := req.(*ledger.Query)
			if want, err := queryRoute(q.Kind); err != nil || want != r {
				return &ledger.Response{Header: ledger.ResponseHeader{Precheck: ledger.StatusNotSupported}}, nil
			}
			return srv.(ledger.Service).Query(ctx, q)
		}
		if interceptor == nil {
			return handle(ctx, q)
		}
		return interceptor(ctx, q, &grpc.UnaryServerInfo{Server: srv, FullMethod: r.fullMethod()}, handle)
	}
}
